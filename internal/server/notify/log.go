package notify

import (
	"context"

	"github.com/dmitrijs2005/tentech/internal/logging"
)

// LogNotifier writes the activation link to the log instead of mailing it.
// Used when no SMTP relay is configured.
type LogNotifier struct {
	logger  logging.Logger
	baseURL string
}

func NewLogNotifier(logger logging.Logger, baseURL string) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notify"), baseURL: baseURL}
}

func (n *LogNotifier) SendActivation(ctx context.Context, email, nickname, rawToken string) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Recipient: email, Err: err}
	}
	n.logger.Info(ctx, "activation link", "email", email, "nickname", nickname, "link", ActivationLink(n.baseURL, rawToken))
	return nil
}
