// Package tokens mints and validates account activation tokens.
//
// A token is the AES-GCM sealed JSON of a user snapshot plus an expiry,
// encoded as unpadded base64url. Tokens need no server-side lookup; the
// symmetric key is supplied once at construction.
package tokens

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/cryptox"
	"github.com/dmitrijs2005/tentech/internal/server/models"
)

// TTL is the fixed lifetime of an activation token.
const TTL = 24 * time.Hour

var encoding = base64.RawURLEncoding.Strict()

// Minted is a freshly issued token. Raw goes to the notifier, Escaped is
// ready to be placed into a URL query component.
type Minted struct {
	Raw       string
	Escaped   string
	ExpiresAt time.Time
}

type Service struct {
	key []byte
	now func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService copies key, which must be a valid AES key (16, 24 or 32 bytes).
func NewService(key []byte, opts ...Option) (*Service, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("activation key: invalid length %d", len(key))
	}
	s := &Service{key: append([]byte(nil), key...), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mint seals a snapshot of user that expires TTL from now.
func (s *Service) Mint(user *models.User) (*Minted, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: mint token for nil user", common.ErrorInternal)
	}
	expiresAt := s.now().Add(TTL)

	sealed, err := cryptox.SealJSON(toPayload(user.Snapshot(), expiresAt), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: seal activation token: %v", common.ErrorInternal, err)
	}

	raw := encoding.EncodeToString(sealed)
	return &Minted{Raw: raw, Escaped: Escape(raw), ExpiresAt: expiresAt}, nil
}

// Validate accepts a raw or escaped token and returns the user snapshot it
// carries. Tokens that do not decode or authenticate yield
// common.ErrInvalidToken; tokens at or past their expiry yield
// common.ErrTokenExpired.
func (s *Service) Validate(token string) (*models.User, error) {
	raw, err := Unescape(token)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	sealed, err := encoding.DecodeString(raw)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	var p payload
	if err := cryptox.OpenJSON(sealed, s.key, &p); err != nil {
		if errors.Is(err, cryptox.ErrMalformed) || errors.Is(err, cryptox.ErrAuthFailed) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !s.now().Before(p.ExpiresAt) {
		return nil, common.ErrTokenExpired
	}

	return p.user(), nil
}
