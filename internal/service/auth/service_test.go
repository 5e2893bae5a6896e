package auth_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/cache"
	"github.com/webmatcha/matcha-go/internal/config"
	"github.com/webmatcha/matcha-go/internal/db"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/service/auth"
)

func setupService(t *testing.T) (*auth.Service, *app.AppContext) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))

	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTTTL = time.Hour
	cfg.Auth.BcryptCost = bcrypt.MinCost
	redisCache := cache.NewRedisCache(cfg)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(gdb, redisCache, log, cfg)
	return auth.NewService(appCtx, nil), appCtx
}

func validInput() auth.RegisterInput {
	return auth.RegisterInput{
		Username:        "newuser",
		Email:           "new@example.com",
		Password:        "Secret1pass",
		ConfirmPassword: "Secret1pass",
		FirstName:       "New",
		LastName:        "User",
		BirthDate:       time.Now().UTC().AddDate(-25, 0, -1),
		Gender:          "female",
	}
}

//
// Registration
//

func TestRegister_Succeeds(t *testing.T) {
	svc, appCtx := setupService(t)

	u, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.False(t, u.IsEmailVerified)

	// password stored hashed
	assert.NotEqual(t, "Secret1pass", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Secret1pass")))

	// a verification token was issued with a 24h expiry
	var v db.EmailVerification
	require.NoError(t, appCtx.DB.Where("user_id = ?", u.ID).First(&v).Error)
	assert.False(t, v.Used)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), v.ExpiresAt, time.Minute)
	assert.GreaterOrEqual(t, len(v.Token), 43) // 32 bytes, URL-safe base64
}

// All form problems are reported at once, not one per round trip.
func TestRegister_AggregatesValidationErrors(t *testing.T) {
	svc, _ := setupService(t)

	in := auth.RegisterInput{
		Username:        "x!",
		Email:           "not-an-email",
		Password:        "short",
		ConfirmPassword: "different",
		BirthDate:       time.Now().UTC().AddDate(-15, 0, 0),
	}
	_, err := svc.Register(context.Background(), in)
	require.Error(t, err)

	var verr *svcErr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Messages), 5)
}

func TestRegister_CommonPasswordRejected(t *testing.T) {
	svc, _ := setupService(t)

	in := validInput()
	in.Password = "Password1"
	in.ConfirmPassword = "Password1"
	_, err := svc.Register(context.Background(), in)
	assert.True(t, svcErr.IsValidation(err))
}

func TestRegister_DuplicateUsernameAndEmail(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "other@example.com"
	_, err = svc.Register(ctx, in)
	assert.True(t, svcErr.IsConflict(err))

	in = validInput()
	in.Username = "otheruser"
	_, err = svc.Register(ctx, in)
	assert.True(t, svcErr.IsConflict(err))
}

//
// Login
//

func registerVerified(t *testing.T, svc *auth.Service, appCtx *app.AppContext) *db.User {
	t.Helper()
	u, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	var v db.EmailVerification
	require.NoError(t, appCtx.DB.Where("user_id = ?", u.ID).First(&v).Error)
	require.NoError(t, svc.VerifyEmail(context.Background(), v.Token))
	return u
}

func TestLogin_ByUsernameOrEmail(t *testing.T) {
	svc, appCtx := setupService(t)
	registerVerified(t, svc, appCtx)
	ctx := context.Background()

	u, token, err := svc.Login(ctx, "newuser", "Secret1pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "newuser", u.Username)

	_, _, err = svc.Login(ctx, "new@example.com", "Secret1pass")
	require.NoError(t, err)

	// token round-trips to the user id
	userID, err := auth.ParseToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)
}

func TestLogin_WrongPasswordAndUnknownUserIndistinct(t *testing.T) {
	svc, appCtx := setupService(t)
	registerVerified(t, svc, appCtx)
	ctx := context.Background()

	_, _, errWrong := svc.Login(ctx, "newuser", "Bad1password")
	_, _, errUnknown := svc.Login(ctx, "ghost", "Bad1password")

	require.Error(t, errWrong)
	require.Error(t, errUnknown)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestLogin_UnverifiedEmailRefused(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "newuser", "Secret1pass")
	require.Error(t, err)
	authz, ok := svcErr.AsAuthorization(err)
	require.True(t, ok)
	assert.Equal(t, svcErr.ReasonForbidden, authz.Reason)
}

//
// Email verification tokens
//

func TestVerifyEmail_TokenIsOneShot(t *testing.T) {
	svc, appCtx := setupService(t)
	u, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	var v db.EmailVerification
	require.NoError(t, appCtx.DB.Where("user_id = ?", u.ID).First(&v).Error)

	require.NoError(t, svc.VerifyEmail(context.Background(), v.Token))

	var fresh db.User
	require.NoError(t, appCtx.DB.First(&fresh, u.ID).Error)
	assert.True(t, fresh.IsEmailVerified)

	// reuse answers exactly like an unknown token
	errReuse := svc.VerifyEmail(context.Background(), v.Token)
	errUnknown := svc.VerifyEmail(context.Background(), "no-such-token")
	require.Error(t, errReuse)
	require.Error(t, errUnknown)
	assert.Equal(t, errUnknown.Error(), errReuse.Error())
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	svc, appCtx := setupService(t)
	u, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, appCtx.DB.Model(&db.EmailVerification{}).
		Where("user_id = ?", u.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	var v db.EmailVerification
	require.NoError(t, appCtx.DB.Where("user_id = ?", u.ID).First(&v).Error)

	err = svc.VerifyEmail(context.Background(), v.Token)
	assert.True(t, svcErr.IsNotFound(err))
}

//
// Password reset
//

func TestPasswordReset_FullFlow(t *testing.T) {
	svc, appCtx := setupService(t)
	u := registerVerified(t, svc, appCtx)
	ctx := context.Background()

	require.NoError(t, svc.RequestPasswordReset(ctx, "new@example.com"))

	var r db.PasswordReset
	require.NoError(t, appCtx.DB.Where("user_id = ?", u.ID).First(&r).Error)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), r.ExpiresAt, time.Minute)

	require.NoError(t, svc.ResetPassword(ctx, r.Token, "Newsecret2"))

	_, _, err := svc.Login(ctx, "newuser", "Newsecret2")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "newuser", "Secret1pass")
	require.Error(t, err)

	// the consumed token is dead
	err = svc.ResetPassword(ctx, r.Token, "Another3pass")
	assert.True(t, svcErr.IsNotFound(err))
}

// Asking for a reset on an unknown address must answer exactly like a
// known one, so the endpoint cannot probe for accounts.
func TestPasswordReset_UnknownEmailSilent(t *testing.T) {
	svc, _ := setupService(t)
	assert.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
}

func TestChangePassword(t *testing.T) {
	svc, appCtx := setupService(t)
	u := registerVerified(t, svc, appCtx)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, u.ID, "Wrong1pass", "Newsecret2")
	require.Error(t, err)
	_, ok := svcErr.AsAuthorization(err)
	assert.True(t, ok)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "Secret1pass", "Newsecret2"))
	_, _, err = svc.Login(ctx, "newuser", "Newsecret2")
	require.NoError(t, err)
}

//
// JWT
//

func TestJWT_RoundTrip(t *testing.T) {
	token, err := auth.IssueToken("secret", 42, time.Hour)
	require.NoError(t, err)

	userID, err := auth.ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), userID)
}

func TestJWT_WrongSecretAndExpiry(t *testing.T) {
	token, err := auth.IssueToken("secret", 42, time.Hour)
	require.NoError(t, err)
	_, err = auth.ParseToken("other-secret", token)
	assert.Error(t, err)

	expired, err := auth.IssueToken("secret", 42, -time.Minute)
	require.NoError(t, err)
	_, err = auth.ParseToken("secret", expired)
	assert.Error(t, err)
}
