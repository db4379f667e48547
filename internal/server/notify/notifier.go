// Package notify delivers activation tokens to users.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/server/tokens"
)

// Notifier sends the activation message for rawToken to email.
// Failures are reported as *DeliveryError.
type Notifier interface {
	SendActivation(ctx context.Context, email, nickname, rawToken string) error
}

// DeliveryError reports that the activation message could not be handed
// to the transport. It is never a storage error.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver activation to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ActivationLink appends the escaped token to baseURL as the token query
// parameter.
func ActivationLink(baseURL, rawToken string) string {
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + common.ActivationTokenParam + "=" + tokens.Escape(rawToken)
}
