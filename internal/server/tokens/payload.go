package tokens

import (
	"time"

	"github.com/dmitrijs2005/tentech/internal/server/models"
)

// payload is the sealed wire form of a token.
type payload struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Nickname    string     `json:"nickname"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Activated   bool       `json:"activated"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

func toPayload(u models.User, expiresAt time.Time) payload {
	return payload{
		ID:          u.ID,
		Username:    u.UserName,
		Nickname:    u.Nickname,
		Email:       u.Email,
		Password:    u.Password,
		Activated:   u.Activated,
		ActivatedAt: u.ActivatedAt,
		ExpiresAt:   expiresAt.UTC(),
	}
}

func (p payload) user() *models.User {
	return &models.User{
		ID:          p.ID,
		UserName:    p.Username,
		Nickname:    p.Nickname,
		Email:       p.Email,
		Password:    p.Password,
		Activated:   p.Activated,
		ActivatedAt: p.ActivatedAt,
	}
}
