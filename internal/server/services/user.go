package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/dbx"
	"github.com/dmitrijs2005/tentech/internal/logging"
	"github.com/dmitrijs2005/tentech/internal/server/auth"
	"github.com/dmitrijs2005/tentech/internal/server/config"
	"github.com/dmitrijs2005/tentech/internal/server/metrics"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/dmitrijs2005/tentech/internal/server/notify"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tentech/internal/server/tokens"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ActivationTokens mints and validates activation tokens.
type ActivationTokens interface {
	Mint(user *models.User) (*tokens.Minted, error)
	Validate(token string) (*models.User, error)
}

// UserService provides the account workflow:
//   - Register and ResendActivation: create users and mail activation tokens
//   - Activate: redeem an activation token
//   - Login and RefreshToken: issue and rotate session tokens
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	tokens                       ActivationTokens
	notifier                     notify.Notifier
	logger                       logging.Logger
	metrics                      metrics.Recorder
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	tokens ActivationTokens, notifier notify.Notifier, logger logging.Logger, rec metrics.Recorder) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		tokens:                       tokens,
		notifier:                     notifier,
		logger:                       logger.With("module", "users"),
		metrics:                      rec,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Register creates a pending account and sends its activation token.
//
// When only the delivery fails the created user is returned together with a
// *notify.DeliveryError; the account stays pending and the caller may
// ResendActivation later.
func (s *UserService) Register(ctx context.Context, username, nickname, email, password string) (*models.User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	user := &models.User{UserName: username, Nickname: nickname, Email: email, Password: string(hash)}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return s.PrepareActivate(ctx, u)
}

// PrepareActivate mints an activation token for a snapshot of user and hands
// the raw token to the notifier. Activation state is never touched here.
func (s *UserService) PrepareActivate(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Activated {
		return user, common.ErrAlreadyActivated
	}

	minted, err := s.tokens.Mint(user)
	if err != nil {
		return user, err
	}

	if err := s.notifier.SendActivation(ctx, user.Email, user.Nickname, minted.Raw); err != nil {
		s.metrics.ActivationFailed()
		s.logger.Error(ctx, "activation delivery failed", "user_id", user.ID, "error", err)

		var de *notify.DeliveryError
		if !errors.As(err, &de) {
			err = &notify.DeliveryError{Recipient: user.Email, Err: err}
		}
		return user, err
	}

	s.metrics.ActivationSent()
	s.logger.Info(ctx, "activation sent", "user_id", user.ID, "expires_at", minted.ExpiresAt)
	return user, nil
}

// ResendActivation sends a new activation token to the pending account
// registered with email.
func (s *UserService) ResendActivation(ctx context.Context, email string) error {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	_, err = s.PrepareActivate(ctx, user)
	return err
}

// Activate redeems a raw or URL-escaped activation token.
func (s *UserService) Activate(ctx context.Context, token string) (*models.User, error) {
	snapshot, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	var activated *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		current, err := repo.GetByID(ctx, snapshot.ID)
		if err != nil {
			return err
		}
		if current.Activated {
			return common.ErrAlreadyActivated
		}
		activated, err = repo.Activate(ctx, current.ID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Activated()
	s.logger.Info(ctx, "user activated", "user_id", activated.ID)
	return activated, nil
}

// Login verifies the password of an activated account and returns a new TokenPair.
func (s *UserService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}
	if !user.Activated {
		return nil, common.ErrNotActivated
	}
	return s.generateTokenPair(ctx, user.ID, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if !token.Expires.After(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// UserIDFromAccessToken verifies an access token issued by Login.
func (s *UserService) UserIDFromAccessToken(accessToken string) (int64, error) {
	return auth.GetUserIDFromToken(accessToken, s.jwtSecret)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID int64, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func validateRegistration(username, email, password string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", common.ErrorValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", common.ErrorValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}
	return nil
}
