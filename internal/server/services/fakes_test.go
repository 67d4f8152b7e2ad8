package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sessionworks/authd/internal/common"
	"github.com/sessionworks/authd/internal/dbx"
	"github.com/sessionworks/authd/internal/server/config"
	"github.com/sessionworks/authd/internal/server/models"
	refreshtokensrepo "github.com/sessionworks/authd/internal/server/repositories/refreshtokens"
	usersrepo "github.com/sessionworks/authd/internal/server/repositories/users"
)

// --- fakes shared by the service tests ---

type fakeUsersRepo struct {
	byID   map[int64]*models.User
	nextID int64

	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}}
}

func (f *fakeUsersRepo) add(u *models.User) *models.User {
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.add(u), nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByGuid(ctx context.Context, guid string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Guid == guid {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) (int64, error) {
	if _, ok := f.byID[id]; !ok {
		return 0, nil
	}
	delete(f.byID, id)
	return 1, nil
}

type fakeRefreshRepo struct {
	byToken map[string]*models.RefreshToken
	nextID  int64

	createErr error
	getErr    error

	// beforeInvalidate, when set, runs before the conditional update of
	// InvalidateByTokenID. Tests use it to interleave a competing consume.
	beforeInvalidate func()
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{byToken: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, t *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	t.Used = false
	t.Valid = true
	f.byToken[t.Token] = t
	return nil
}

func (f *fakeRefreshRepo) GetByToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if t, ok := f.byToken[value]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) InvalidateByTokenID(ctx context.Context, tokenID string) (int64, error) {
	if f.beforeInvalidate != nil {
		f.beforeInvalidate()
	}
	for _, t := range f.byToken {
		if t.TokenID == tokenID && !t.Used && t.Valid {
			t.Used = true
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeRefreshRepo) InvalidateAllForOwner(ctx context.Context, ownerGuid string) (int64, error) {
	var n int64
	for _, t := range f.byToken {
		if t.OwnerGuid == ownerGuid && t.Valid {
			t.Valid = false
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (fakeHasher) Verify(password, hash string) bool    { return hash == "hashed:"+password }

// --- construction helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig(accessTTL time.Duration) *config.Config {
	return &config.Config{
		JWTSecretKey:                 "test-secret",
		JWTIssuer:                    "authd",
		JWTAudience:                  "authd-clients",
		AccessTokenValidityDuration:  accessTTL,
		RefreshTokenValidityDuration: time.Hour,
		BcryptCost:                   4,
	}
}

func newTestServices(t *testing.T, accessTTL time.Duration) (*AuthService, *UserService, *fakeRepoManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRefreshRepo()}
	us := NewUserService(db, rm, fakeHasher{})
	as := NewAuthService(db, rm, us, fakeHasher{}, testConfig(accessTTL))
	return as, us, rm, mock
}

func addUser(rm *fakeRepoManager, email, password string, role models.Role) *models.User {
	hash, _ := fakeHasher{}.Hash(password)
	return rm.u.add(&models.User{
		Guid:         "guid-" + email,
		Username:     email,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	})
}
