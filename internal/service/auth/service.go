package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/db"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/repository"
)

const (
	emailVerificationTTL = 24 * time.Hour
	passwordResetTTL     = time.Hour

	// Expiry, reuse and unknown tokens share one message so the caller
	// cannot tell them apart.
	invalidTokenMsg = "invalid or expired token"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// commonPasswords are rejected outright regardless of character classes.
var commonPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"123456":    {},
	"12345678":  {},
	"qwerty":    {},
	"abc123":    {},
	"letmein":   {},
	"welcome":   {},
	"admin":     {},
	"iloveyou":  {},
}

// Mailer delivers account emails. The default implementation just logs
// the link, real SMTP is wired in deployments.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	BirthDate       time.Time
	Gender          string
}

// Service handles registration, login and the two token flows.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	tokens *repository.TokenRepository
	mailer Mailer
}

func NewService(appCtx *app.AppContext, mailer Mailer) *Service {
	if mailer == nil {
		mailer = &logMailer{appCtx: appCtx}
	}
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		tokens: repository.NewTokenRepository(appCtx.DB),
		mailer: mailer,
	}
}

// Register validates the whole form at once, creates the account with a
// hashed password and mails a verification token. The account cannot log
// in until the email is verified.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*db.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	var problems []string
	if len(in.Username) < 3 || len(in.Username) > 50 {
		problems = append(problems, "username must be between 3 and 50 characters")
	} else if !usernameRe.MatchString(in.Username) {
		problems = append(problems, "username may only contain letters, digits and underscores")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		problems = append(problems, "email address is invalid")
	}
	problems = append(problems, passwordProblems(in.Password)...)
	if in.Password != in.ConfirmPassword {
		problems = append(problems, "passwords do not match")
	}
	if in.BirthDate.IsZero() || ageYears(in.BirthDate) < 18 {
		problems = append(problems, "you must be at least 18 years old")
	}
	if in.Gender == "" {
		problems = append(problems, "gender is required")
	}
	if len(problems) > 0 {
		return nil, svcErr.Validation(problems...)
	}

	usernameTaken, emailTaken, err := s.users.UsernameOrEmailTaken(ctx, in.Username, in.Email)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	if usernameTaken {
		return nil, svcErr.Conflict("username is already taken")
	}
	if emailTaken {
		return nil, svcErr.Conflict("email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.appCtx.Config.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &db.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		BirthDate:    in.BirthDate,
		Gender:       strings.ToLower(in.Gender),
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, svcErr.Store(err)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	if err := s.tokens.CreateEmailVerification(ctx, u.ID, token, emailVerificationTTL); err != nil {
		return nil, svcErr.Store(err)
	}
	if err := s.mailer.SendVerification(ctx, u.Email, token); err != nil {
		s.appCtx.Logger.Warn("verification mail failed", "user", u.ID, "err", err)
	}

	s.appCtx.Logger.Info("user registered", "user", u.ID, "username", u.Username)
	return u, nil
}

// Login accepts a username or an email, requires a verified address and
// an active account, and returns a signed JWT on success.
func (s *Service) Login(ctx context.Context, login, password string) (*db.User, string, error) {
	u, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", svcErr.NotFound("invalid credentials")
	} else if err != nil {
		return nil, "", svcErr.Store(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", svcErr.NotFound("invalid credentials")
	}
	if !u.IsEmailVerified {
		return nil, "", svcErr.Forbidden("email address is not verified")
	}
	if !u.Active {
		return nil, "", svcErr.Forbidden("account is deactivated")
	}

	token, err := IssueToken(s.appCtx.Config.Auth.JWTSecret, u.ID, s.appCtx.Config.Auth.JWTTTL)
	if err != nil {
		return nil, "", fmt.Errorf("signing token: %w", err)
	}

	if err := s.users.SetOnline(ctx, u.ID, true); err != nil {
		s.appCtx.Logger.Warn("failed to set user online", "user", u.ID, "err", err)
	}
	return u, token, nil
}

// Logout flips the user offline; the JWT itself simply expires.
func (s *Service) Logout(ctx context.Context, userID uint64) error {
	return svcErr.Store(s.users.SetOnline(ctx, userID, false))
}

// VerifyEmail consumes a verification token and marks the address
// verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	v, err := s.tokens.FindActiveEmailVerification(ctx, token)
	if err != nil {
		return svcErr.Store(err)
	}
	if v == nil || time.Now().UTC().After(v.ExpiresAt) {
		return svcErr.NotFound(invalidTokenMsg)
	}

	u, err := s.users.GetByID(ctx, v.UserID)
	if err != nil {
		return svcErr.Store(err)
	}

	now := time.Now().UTC()
	u.IsEmailVerified = true
	u.EmailVerifiedAt = &now
	if err := s.users.Save(ctx, u); err != nil {
		return svcErr.Store(err)
	}
	if err := s.tokens.MarkEmailVerificationUsed(ctx, v.ID); err != nil {
		return svcErr.Store(err)
	}

	s.appCtx.Logger.Info("email verified", "user", u.ID)
	return nil
}

// RequestPasswordReset mails a reset token when the address exists. The
// answer is identical either way so the endpoint cannot be used to probe
// for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	} else if err != nil {
		return svcErr.Store(err)
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	if err := s.tokens.CreatePasswordReset(ctx, u.ID, token, passwordResetTTL); err != nil {
		return svcErr.Store(err)
	}
	if err := s.mailer.SendPasswordReset(ctx, u.Email, token); err != nil {
		s.appCtx.Logger.Warn("reset mail failed", "user", u.ID, "err", err)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if problems := passwordProblems(newPassword); len(problems) > 0 {
		return svcErr.Validation(problems...)
	}

	r, err := s.tokens.FindActivePasswordReset(ctx, token)
	if err != nil {
		return svcErr.Store(err)
	}
	if r == nil || time.Now().UTC().After(r.ExpiresAt) {
		return svcErr.NotFound(invalidTokenMsg)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.appCtx.Config.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	u, err := s.users.GetByID(ctx, r.UserID)
	if err != nil {
		return svcErr.Store(err)
	}
	u.PasswordHash = string(hash)
	if err := s.users.Save(ctx, u); err != nil {
		return svcErr.Store(err)
	}
	if err := s.tokens.MarkPasswordResetUsed(ctx, r.ID); err != nil {
		return svcErr.Store(err)
	}

	s.appCtx.Logger.Info("password reset", "user", u.ID)
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, current, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound(fmt.Sprintf("user %d not found", userID))
	} else if err != nil {
		return svcErr.Store(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return svcErr.Forbidden("current password is incorrect")
	}
	if problems := passwordProblems(newPassword); len(problems) > 0 {
		return svcErr.Validation(problems...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.appCtx.Config.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordHash = string(hash)
	return svcErr.Store(s.users.Save(ctx, u))
}

// newToken returns a 32-byte random token in URL-safe base64.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func passwordProblems(password string) []string {
	var problems []string
	if len(password) < 6 {
		problems = append(problems, "password must be at least 6 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		problems = append(problems, "password must contain an uppercase letter, a lowercase letter and a digit")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		problems = append(problems, "password is too common")
	}
	return problems
}

func ageYears(birth time.Time) int {
	now := time.Now().UTC()
	age := now.Year() - birth.Year()
	if now.YearDay() < birth.YearDay() {
		age--
	}
	return age
}

// logMailer writes the tokens to the log instead of sending email.
type logMailer struct {
	appCtx *app.AppContext
}

func (m *logMailer) SendVerification(_ context.Context, email, token string) error {
	m.appCtx.Logger.Info("verification email", "to", email, "token", token)
	return nil
}

func (m *logMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.appCtx.Logger.Info("password reset email", "to", email, "token", token)
	return nil
}
