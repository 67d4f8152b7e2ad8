package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionworks/authd/internal/common"
	"github.com/sessionworks/authd/internal/server/models"
)

// expiredTTL makes every issued access token already expired, which lets
// refresh tests exercise the exchange without waiting.
const expiredTTL = -1 * time.Second

func requireRotationReason(t *testing.T, err error, want RejectReason) {
	t.Helper()
	var rerr *RotationError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, want, rerr.Reason, "unexpected rejection reason: %v", rerr)
}

func TestLogin_Success(t *testing.T) {
	as, _, rm, _ := newTestServices(t, time.Hour)
	user := addUser(rm, "alice@example.com", "pw123", models.RoleAdmin)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := as.Issuer().Parse(pair.AccessToken)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	// The paired refresh token is persisted, redeemable and carries the jti.
	stored, err := rm.r.GetByToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, stored.TokenID)
	assert.Equal(t, user.Guid, stored.OwnerGuid)
	assert.True(t, stored.Redeemable(time.Now()))
}

func TestLogin_FailureModesAreIndistinguishable(t *testing.T) {
	as, _, rm, _ := newTestServices(t, time.Hour)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	_, errUnknown := as.Login(context.Background(), "nobody@example.com", "pw123")
	_, errWrongPw := as.Login(context.Background(), "alice@example.com", "wrong")

	require.ErrorIs(t, errUnknown, common.ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPw, common.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
}

func TestRegister_RoundTrip(t *testing.T) {
	as, us, _, _ := newTestServices(t, time.Hour)

	params := CreateUserParams{
		Username:  "bob",
		FirstName: "Bob",
		LastName:  "Jones",
		Email:     "bob@example.com",
		Role:      models.RoleAdmin, // requested but caller is not SuperAdmin
		Password:  "pw123",
	}

	pair, err := as.Register(context.Background(), params, models.RoleUser)
	require.NoError(t, err)

	claims, err := as.Issuer().Parse(pair.AccessToken)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)

	user, err := us.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", user.Email)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, models.RoleUser, user.Role, "requested role must be ignored for non-SuperAdmin callers")
}

func TestRefresh_NotYetExpired(t *testing.T) {
	as, _, rm, _ := newTestServices(t, time.Hour)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	requireRotationReason(t, err, ReasonNotYetExpired)
}

func TestRefresh_SuccessThenReplayRejected(t *testing.T) {
	as, _, rm, mock := newTestServices(t, expiredTTL)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	// First exchange: one committed transaction.
	mock.ExpectBegin()
	mock.ExpectCommit()

	fresh, err := as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, fresh.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	// Replaying the consumed pair is rejected before any transaction starts.
	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	requireRotationReason(t, err, ReasonAlreadyUsed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_NotFound(t *testing.T) {
	as, _, rm, _ := newTestServices(t, expiredTTL)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	_, err = as.Refresh(context.Background(), pair.AccessToken, "no-such-value")
	requireRotationReason(t, err, ReasonNotFound)
}

func TestRefresh_Expired(t *testing.T) {
	as, _, rm, _ := newTestServices(t, expiredTTL)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	rm.r.byToken[pair.RefreshToken].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	requireRotationReason(t, err, ReasonExpired)
}

func TestRefresh_Invalidated(t *testing.T) {
	as, _, rm, _ := newTestServices(t, expiredTTL)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	rm.r.byToken[pair.RefreshToken].Valid = false

	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	requireRotationReason(t, err, ReasonInvalidated)
}

func TestRefresh_PairingMismatch(t *testing.T) {
	as, _, rm, _ := newTestServices(t, expiredTTL)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	first, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)
	second, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	// Access token of session one presented with the refresh token of
	// session two.
	_, err = as.Refresh(context.Background(), first.AccessToken, second.RefreshToken)
	requireRotationReason(t, err, ReasonPairingMismatch)
}

func TestRefresh_OwnerNotFound(t *testing.T) {
	as, _, rm, _ := newTestServices(t, expiredTTL)
	user := addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	delete(rm.u.byID, user.ID)

	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrOwnerNotFound)
}

func TestRefresh_InvalidAccessToken(t *testing.T) {
	as, _, _, _ := newTestServices(t, expiredTTL)

	_, err := as.Refresh(context.Background(), "not.a.jwt", "whatever")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRefresh_ConcurrentLoserSeesZeroRows(t *testing.T) {
	as, _, rm, mock := newTestServices(t, expiredTTL)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	// Simulate the race: a competing exchange consumes the row between this
	// caller's lookup and its conditional update. The update then affects
	// zero rows and the transaction rolls back.
	rm.r.beforeInvalidate = func() {
		rm.r.beforeInvalidate = nil
		rm.r.byToken[pair.RefreshToken].Used = true
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	requireRotationReason(t, err, ReasonAlreadyUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogout_RevokesSingleSession(t *testing.T) {
	as, _, rm, mock := newTestServices(t, expiredTTL)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	first, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)
	second, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	firstClaims, err := as.Issuer().ParseExpired(first.AccessToken)
	require.NoError(t, err)

	require.NoError(t, as.Logout(context.Background(), firstClaims.ID))

	// The logged-out session cannot be refreshed.
	_, err = as.Refresh(context.Background(), first.AccessToken, first.RefreshToken)
	requireRotationReason(t, err, ReasonAlreadyUsed)

	// The other session is untouched.
	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = as.Refresh(context.Background(), second.AccessToken, second.RefreshToken)
	require.NoError(t, err)
}

func TestLogout_UnknownTokenIDIsNotAnError(t *testing.T) {
	as, _, _, _ := newTestServices(t, time.Hour)
	require.NoError(t, as.Logout(context.Background(), "no-such-jti"))
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	as, _, rm, _ := newTestServices(t, expiredTTL)
	user := addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	first, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)
	second, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	require.NoError(t, as.LogoutAll(context.Background(), user.ID))

	_, err = as.Refresh(context.Background(), first.AccessToken, first.RefreshToken)
	requireRotationReason(t, err, ReasonInvalidated)
	_, err = as.Refresh(context.Background(), second.AccessToken, second.RefreshToken)
	requireRotationReason(t, err, ReasonInvalidated)
}

func TestLogoutAll_OwnerMissing(t *testing.T) {
	as, _, _, _ := newTestServices(t, time.Hour)

	err := as.LogoutAll(context.Background(), 999)
	require.ErrorIs(t, err, common.ErrOwnerNotFound)
}

// TestRefresh_ShortLivedPairEndToEnd exercises the real clock: a pair issued
// with a one-second access-token lifetime is rejected while the access token
// is live and exchanged successfully once it lapsed; afterwards the old
// refresh value is spent.
func TestRefresh_ShortLivedPairEndToEnd(t *testing.T) {
	as, _, rm, mock := newTestServices(t, 1*time.Second)
	addUser(rm, "alice@example.com", "pw123", models.RoleUser)

	pair, err := as.Login(context.Background(), "alice@example.com", "pw123")
	require.NoError(t, err)

	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	requireRotationReason(t, err, ReasonNotYetExpired)

	time.Sleep(1100 * time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectCommit()

	fresh, err := as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, fresh.AccessToken)

	_, err = as.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	requireRotationReason(t, err, ReasonAlreadyUsed)
}

func TestRotationError_Message(t *testing.T) {
	err := rejected(ReasonPairingMismatch)
	var rerr *RotationError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "refresh rejected: refresh token does not match access token", rerr.Error())
}
