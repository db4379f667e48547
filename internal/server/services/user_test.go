package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/cryptox"
	"github.com/dmitrijs2005/tentech/internal/dbx"
	"github.com/dmitrijs2005/tentech/internal/logging"
	"github.com/dmitrijs2005/tentech/internal/server/config"
	"github.com/dmitrijs2005/tentech/internal/server/metrics"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/dmitrijs2005/tentech/internal/server/notify"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/products"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/producttags"
	refreshtokensrepo "github.com/dmitrijs2005/tentech/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/tentech/internal/server/repositories/users"
	"github.com/dmitrijs2005/tentech/internal/server/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// fakes

type fakeUsersRepo struct {
	byID      map[int64]*models.User
	nextID    int64
	createErr error
	getErr    error
	activated []int64
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}, nextID: 1}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.UserName == u.UserName || existing.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	u.ID = f.nextID
	f.nextID++
	stored := u.Snapshot()
	f.byID[u.ID] = &stored
	return u, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if match(u) {
			c := u.Snapshot()
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) GetByUsername(_ context.Context, name string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.UserName == name })
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) Activate(_ context.Context, id int64, at time.Time) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok || u.Activated {
		return nil, common.ErrAlreadyActivated
	}
	u.Activated = true
	u.ActivatedAt = &at
	f.activated = append(f.activated, id)
	c := u.Snapshot()
	return &c, nil
}

type fakeRefreshRepo struct {
	findOut   *models.RefreshToken
	findErr   error
	delErr    error
	createErr error
	created   []string
}

func (f *fakeRefreshRepo) Create(_ context.Context, _ int64, token string, _ time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) Find(context.Context, string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(context.Context, string) error { return f.delErr }

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Products(dbx.DBTX) products.Repository               { return nil }
func (m *fakeRepoManager) ProductTags(dbx.DBTX) producttags.Repository         { return nil }

type sentActivation struct {
	email, nickname, token string
}

type fakeNotifier struct {
	sent []sentActivation
	err  error
}

func (n *fakeNotifier) SendActivation(_ context.Context, email, nickname, rawToken string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentActivation{email, nickname, rawToken})
	return nil
}

type countingMetrics struct {
	metrics.Nop
	sent, failed, activated int
}

func (m *countingMetrics) ActivationSent()   { m.sent++ }
func (m *countingMetrics) ActivationFailed() { m.failed++ }
func (m *countingMetrics) Activated()        { m.activated++ }

// helpers

type userFixture struct {
	svc      *UserService
	db       *sql.DB
	mock     sqlmock.Sqlmock
	users    *fakeUsersRepo
	refresh  *fakeRefreshRepo
	notifier *fakeNotifier
	metrics  *countingMetrics
	tokens   *tokens.Service
	now      time.Time
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &userFixture{
		db:       db,
		mock:     mock,
		users:    newFakeUsersRepo(),
		refresh:  &fakeRefreshRepo{},
		notifier: &fakeNotifier{},
		metrics:  &countingMetrics{},
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.tokens, err = tokens.NewService(cryptox.DeriveKey([]byte("s"), []byte("salt")), tokens.WithClock(clock))
	require.NoError(t, err)

	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	f.svc = NewUserService(db, &fakeRepoManager{u: f.users, r: f.refresh}, cfg, f.tokens, f.notifier, logging.Nop{}, f.metrics)
	f.svc.now = clock
	return f
}

func (f *userFixture) seedUser(t *testing.T, name string, activated bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := f.users.Create(context.Background(), &models.User{UserName: name, Nickname: name, Email: name + "@example.com", Password: string(hash)})
	require.NoError(t, err)
	if activated {
		_, err = f.users.Activate(context.Background(), u.ID, f.now)
		require.NoError(t, err)
		f.users.activated = nil
	}
	return u
}

// Register / PrepareActivate

func TestRegister_SendsRawToken(t *testing.T) {
	f := newUserFixture(t)

	u, err := f.svc.Register(context.Background(), "alice", "Al", "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.Activated)
	assert.Nil(t, u.ActivatedAt)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password123")))

	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, "alice@example.com", sent.email)
	assert.Equal(t, "Al", sent.nickname)
	assert.NotContains(t, sent.token, "%", "the notifier receives the unescaped token")

	snap, err := f.tokens.Validate(sent.token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, snap.ID)
	assert.Equal(t, 1, f.metrics.sent)
}

func TestRegister_DeliveryFailureKeepsUserPending(t *testing.T) {
	f := newUserFixture(t)
	f.notifier.err = errors.New("smtp: 421")

	u, err := f.svc.Register(context.Background(), "alice", "Al", "alice@example.com", "password123")

	var de *notify.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "alice@example.com", de.Recipient)
	require.NotNil(t, u, "the account exists even though delivery failed")

	stored, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, stored.Activated)
	assert.Nil(t, stored.ActivatedAt)
	assert.Equal(t, 1, f.metrics.failed)
	assert.Zero(t, f.metrics.sent)
}

func TestRegister_PassesThroughTypedDeliveryError(t *testing.T) {
	f := newUserFixture(t)
	orig := &notify.DeliveryError{Recipient: "alice@example.com", Err: errBoom{}}
	f.notifier.err = orig

	_, err := f.svc.Register(context.Background(), "alice", "Al", "alice@example.com", "password123")

	var de *notify.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Same(t, orig, de)
}

func TestRegister_Validation(t *testing.T) {
	f := newUserFixture(t)

	tests := []struct {
		name, username, email, password string
	}{
		{"empty username", " ", "a@x.io", "password123"},
		{"bad email", "alice", "not-an-email", "password123"},
		{"display name email", "alice", "Alice <a@x.io>", "password123"},
		{"short password", "alice", "a@x.io", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.username, "", tt.email, tt.password)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
	assert.Empty(t, f.notifier.sent)
}

func TestRegister_Conflict(t *testing.T) {
	f := newUserFixture(t)
	f.seedUser(t, "alice", false)

	_, err := f.svc.Register(context.Background(), "alice", "", "other@example.com", "password123")
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Empty(t, f.notifier.sent)
}

func TestRegister_StoreError(t *testing.T) {
	f := newUserFixture(t)
	f.users.createErr = errBoom{}

	_, err := f.svc.Register(context.Background(), "bob", "", "bob@example.com", "password123")
	if err == nil || !regexp.MustCompile(`error creating user: .*boom`).MatchString(err.Error()) {
		t.Fatalf("Register expected wrapped error, got %v", err)
	}
	var de *notify.DeliveryError
	assert.False(t, errors.As(err, &de), "store errors must not look like delivery errors")
}

func TestPrepareActivate_AlreadyActivated(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, "alice", true)
	stored, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)

	_, err = f.svc.PrepareActivate(context.Background(), stored)
	assert.ErrorIs(t, err, common.ErrAlreadyActivated)
	assert.Empty(t, f.notifier.sent)
}

func TestResendActivation(t *testing.T) {
	f := newUserFixture(t)
	f.seedUser(t, "alice", false)

	require.NoError(t, f.svc.ResendActivation(context.Background(), "alice@example.com"))
	assert.Len(t, f.notifier.sent, 1)

	err := f.svc.ResendActivation(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

// Activate

func mintFor(t *testing.T, f *userFixture, u *models.User) *tokens.Minted {
	t.Helper()
	m, err := f.tokens.Mint(u)
	require.NoError(t, err)
	return m
}

func TestActivate_Success(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, "alice", false)
	m := mintFor(t, f, u)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	f.now = f.now.Add(time.Hour)
	got, err := f.svc.Activate(context.Background(), m.Escaped)
	require.NoError(t, err)
	assert.True(t, got.Activated)
	require.NotNil(t, got.ActivatedAt)
	assert.True(t, got.ActivatedAt.Equal(f.now))
	assert.Equal(t, []int64{u.ID}, f.users.activated)
	assert.Equal(t, 1, f.metrics.activated)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestActivate_Expired(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, "alice", false)
	m := mintFor(t, f, u)

	f.now = f.now.Add(tokens.TTL)
	_, err := f.svc.Activate(context.Background(), m.Raw)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.Empty(t, f.users.activated)
}

func TestActivate_Tampered(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, "alice", false)
	m := mintFor(t, f, u)

	b := []byte(m.Raw)
	b[len(b)/2] ^= 0x02
	_, err := f.svc.Activate(context.Background(), string(b))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestActivate_AlreadyActivatedRollsBack(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, "alice", false)
	m := mintFor(t, f, u)
	_, err := f.users.Activate(context.Background(), u.ID, f.now)
	require.NoError(t, err)
	f.users.activated = nil

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err = f.svc.Activate(context.Background(), m.Raw)
	assert.ErrorIs(t, err, common.ErrAlreadyActivated)
	assert.Empty(t, f.users.activated)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestActivate_UserGone(t *testing.T) {
	f := newUserFixture(t)
	m := mintFor(t, f, &models.User{ID: 99, UserName: "ghost"})

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Activate(context.Background(), m.Raw)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

// Login / RefreshToken

func TestLogin_Flows(t *testing.T) {
	f := newUserFixture(t)
	f.seedUser(t, "active", true)
	f.seedUser(t, "pending", false)

	_, err := f.svc.Login(context.Background(), "ghost", "password123")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Login(context.Background(), "active", "wrong-password")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Login(context.Background(), "pending", "password123")
	assert.ErrorIs(t, err, common.ErrNotActivated)

	pair, err := f.svc.Login(context.Background(), "active", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, []string{pair.RefreshToken}, f.refresh.created)

	id, err := f.svc.UserIDFromAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestLogin_StoreError(t *testing.T) {
	f := newUserFixture(t)
	f.users.getErr = errBoom{}

	_, err := f.svc.Login(context.Background(), "u", "x")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestRefreshToken_Success(t *testing.T) {
	f := newUserFixture(t)
	f.refresh.findOut = &models.RefreshToken{UserID: 1, Expires: f.now.Add(10 * time.Minute)}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	pair, err := f.svc.RefreshToken(context.Background(), "refresh-xyz")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRefreshToken_Expired(t *testing.T) {
	f := newUserFixture(t)
	f.refresh.findOut = &models.RefreshToken{UserID: 1, Expires: f.now.Add(-time.Minute)}

	_, err := f.svc.RefreshToken(context.Background(), "r")
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestRefreshToken_Unknown(t *testing.T) {
	f := newUserFixture(t)
	f.refresh.findErr = common.ErrorNotFound

	_, err := f.svc.RefreshToken(context.Background(), "r")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefreshToken_FindErr(t *testing.T) {
	f := newUserFixture(t)
	f.refresh.findErr = errBoom{}

	_, err := f.svc.RefreshToken(context.Background(), "r")
	if err == nil || !regexp.MustCompile(`error searching refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped find error, got %v", err)
	}
}

func TestRefreshToken_DeleteErrRollsBack(t *testing.T) {
	f := newUserFixture(t)
	f.refresh.findOut = &models.RefreshToken{UserID: 1, Expires: f.now.Add(10 * time.Minute)}
	f.refresh.delErr = errBoom{}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.RefreshToken(context.Background(), "r")
	if err == nil || !regexp.MustCompile(`error deleting refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRefreshToken_CreateErrRollsBack(t *testing.T) {
	f := newUserFixture(t)
	f.refresh.findOut = &models.RefreshToken{UserID: 1, Expires: f.now.Add(10 * time.Minute)}
	f.refresh.createErr = errBoom{}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.RefreshToken(context.Background(), "r")
	assert.ErrorIs(t, err, common.ErrorInternal)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
