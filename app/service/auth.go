package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vantage-solutions/ms-go-accounts/app/entity"
	"github.com/vantage-solutions/ms-go-accounts/app/mailer"
	"github.com/vantage-solutions/ms-go-accounts/app/repository"
	"github.com/vantage-solutions/ms-go-accounts/config"

	"github.com/sirupsen/logrus"
)

var (
	ErrUserExists         = errors.New("username or email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotVerified = errors.New("account is not verified")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrPasswordMismatch   = errors.New("current password is incorrect")
	ErrConfirmMismatch    = errors.New("password confirmation does not match")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
	ErrInvalidRole        = errors.New("invalid role")
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByCanonicalEmail(ctx context.Context, canonicalEmail string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByResetToken(ctx context.Context, token string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	List(ctx context.Context) ([]*entity.User, error)
	Delete(ctx context.Context, id uint64) (int64, error)
}

type refreshTokenRepository interface {
	Create(ctx context.Context, token *entity.RefreshToken) error
	FindByTokenForUpdate(ctx context.Context, token string) (*entity.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string, userID uint64) (int64, error)
	DeleteByUserID(ctx context.Context, userID uint64) error
}

type refreshTokenCreator interface {
	Create(ctx context.Context, token *entity.RefreshToken) error
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         *entity.User
}

// AsyncRunner executes post-commit side effects (mail dispatch, bookkeeping)
// off the request path. Tests swap it for a synchronous runner.
type AsyncRunner func(task func())

type AuthServiceOption func(*AuthService)

// AuthService orchestrates registration, verification, login and the
// password lifecycle. Account state always commits before any notification
// is dispatched; a failed send leaves the account where it was.
type AuthService struct {
	db          *sql.DB
	userRepo    userRepository
	refreshRepo refreshTokenRepository
	tokens      *TokenIssuer
	mailer      mailer.Sender
	cfg         *config.Config
	asyncRunner AsyncRunner
}

func NewAuthService(
	db *sql.DB,
	userRepo userRepository,
	refreshRepo refreshTokenRepository,
	tokens *TokenIssuer,
	sender mailer.Sender,
	cfg *config.Config,
	opts ...AuthServiceOption,
) *AuthService {
	svc := &AuthService{
		db:          db,
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		tokens:      tokens,
		mailer:      sender,
		cfg:         cfg,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) AuthServiceOption {
	return func(s *AuthService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

func (s *AuthService) Register(ctx context.Context, username, email, password, role string) (*entity.User, error) {
	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}

	canonicalEmail := CanonicalizeEmail(email)

	existing, err := s.userRepo.FindByCanonicalEmail(ctx, canonicalEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	existing, err = s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	if err := s.cfg.PasswordPolicy.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	verifyToken := s.tokens.NewActionToken()
	now := time.Now()

	user := &entity.User{
		Username:       username,
		Email:          email,
		CanonicalEmail: canonicalEmail,
		PasswordHash:   hashedPassword,
		Role:           role,
		IsVerified:     false,
		VerifyToken:    sql.NullString{String: verifyToken, Valid: true},
		VerifyTokenExpiresAt: sql.NullTime{
			Time:  now.Add(s.cfg.VerifyTokenTTL),
			Valid: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// The existence checks above are not atomic with the insert; a
		// concurrent register for the same email or username is decided
		// by the unique indexes.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.dispatchVerificationMail(user.Email, verifyToken)

	return user, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, email, token string) error {
	user, err := s.userRepo.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	// A stale token after verification must not silently succeed.
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if !user.VerifyToken.Valid || user.VerifyToken.String != token {
		return ErrInvalidToken
	}

	if !user.VerifyTokenExpiresAt.Valid || user.VerifyTokenExpiresAt.Time.Before(time.Now()) {
		return ErrTokenExpired
	}

	user.IsVerified = true
	user.VerifyToken = sql.NullString{Valid: false}
	user.VerifyTokenExpiresAt = sql.NullTime{Valid: false}

	return s.userRepo.Update(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, ErrAccountNotVerified
	}

	accessToken, err := s.tokens.IssueSession(user, 0)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.createRefreshToken(ctx, s.refreshRepo, user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.SessionTokenTTL.Seconds()),
		User:         user,
	}, nil
}

// Logout drops the server-tracked refresh token. Session tokens are
// stateless and stay valid until expiry; once the refresh token is gone the
// session cannot be renewed.
func (s *AuthService) Logout(ctx context.Context, userID uint64, refreshToken string) error {
	_, err := s.refreshRepo.DeleteByToken(ctx, refreshToken, userID)
	return err
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txRefreshRepo := repository.NewRefreshTokenRepository(tx)

	token, err := txRefreshRepo.FindByTokenForUpdate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrInvalidToken
	}

	if token.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	txUserRepo := repository.NewUserRepository(tx)
	user, err := txUserRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	rowsDeleted, err := txRefreshRepo.DeleteByToken(ctx, refreshToken, token.UserID)
	if err != nil {
		return nil, err
	}
	if rowsDeleted == 0 {
		return nil, ErrInvalidToken
	}

	accessToken, err := s.tokens.IssueSession(user, 0)
	if err != nil {
		return nil, err
	}

	newRefreshToken, err := s.createRefreshToken(ctx, txRefreshRepo, user)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int64(s.cfg.SessionTokenTTL.Seconds()),
		User:         user,
	}, nil
}

func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if user.IsVerified {
		return ErrAlreadyVerified
	}

	verifyToken := user.VerifyToken.String
	if !user.VerifyToken.Valid || !user.VerifyTokenExpiresAt.Valid || user.VerifyTokenExpiresAt.Time.Before(time.Now()) {
		verifyToken = s.tokens.NewActionToken()
		user.VerifyToken = sql.NullString{String: verifyToken, Valid: true}
		user.VerifyTokenExpiresAt = sql.NullTime{
			Time:  time.Now().Add(s.cfg.VerifyTokenTTL),
			Valid: true,
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
	}

	s.dispatchVerificationMail(user.Email, verifyToken)
	return nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	resetToken := user.ResetToken.String
	if !user.ResetToken.Valid || !user.ResetTokenExpiresAt.Valid || user.ResetTokenExpiresAt.Time.Before(time.Now()) {
		resetToken = s.tokens.NewActionToken()
		user.ResetToken = sql.NullString{String: resetToken, Valid: true}
		user.ResetTokenExpiresAt = sql.NullTime{
			Time:  time.Now().Add(s.cfg.ResetTokenTTL),
			Valid: true,
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
	}

	s.dispatchResetMail(user.Email, resetToken)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.userRepo.FindByResetToken(ctx, token)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidToken
	}

	if !user.ResetTokenExpiresAt.Valid || user.ResetTokenExpiresAt.Time.Before(time.Now()) {
		return ErrTokenExpired
	}

	if err := s.cfg.PasswordPolicy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hashedPassword
	user.ResetToken = sql.NullString{Valid: false}
	user.ResetTokenExpiresAt = sql.NullTime{Valid: false}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	return s.refreshRepo.DeleteByUserID(ctx, user.ID)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrConfirmMismatch
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if !CheckPassword(oldPassword, user.PasswordHash) {
		return ErrPasswordMismatch
	}

	if err := s.cfg.PasswordPolicy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hashedPassword
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	return s.refreshRepo.DeleteByUserID(ctx, user.ID)
}

func (s *AuthService) VerifySession(tokenString string) (*SessionClaims, error) {
	return s.tokens.VerifySession(tokenString)
}

func (s *AuthService) createRefreshToken(ctx context.Context, repo refreshTokenCreator, user *entity.User) (string, error) {
	tokenString := s.tokens.NewActionToken()
	now := time.Now()

	refreshToken := &entity.RefreshToken{
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt: now,
	}

	if err := repo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *AuthService) dispatchVerificationMail(email, token string) {
	link := fmt.Sprintf("%s/auth/verify-email?email=%s&token=%s",
		s.cfg.BaseURL, url.QueryEscape(email), url.QueryEscape(token))
	body := fmt.Sprintf(`Click <a href=%q>here</a> to verify your email.`, link)
	s.dispatchMail(email, "Verify your email", body)
}

func (s *AuthService) dispatchResetMail(email, token string) {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", s.cfg.BaseURL, url.QueryEscape(token))
	body := fmt.Sprintf(`Click <a href=%q>here</a> to reset your password.`, link)
	s.dispatchMail(email, "Reset your password", body)
}

func (s *AuthService) dispatchMail(to, subject, body string) {
	s.asyncRunner(func() {
		if err := s.mailer.Send(to, subject, body); err != nil {
			logrus.WithError(err).WithField("email", to).Error("Failed to send notification email")
		}
	})
}
