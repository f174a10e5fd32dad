package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/vantage-solutions/ms-go-accounts/app/dto"
	"github.com/vantage-solutions/ms-go-accounts/app/entity"
	"github.com/vantage-solutions/ms-go-accounts/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type authFlow interface {
	Register(ctx context.Context, username, email, password, role string) (*entity.User, error)
	VerifyEmail(ctx context.Context, email, token string) error
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, userID uint64, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (*service.LoginResult, error)
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword, confirmPassword string) error
}

type AuthController struct {
	authService authFlow
}

func NewAuthController(authService authFlow) *AuthController {
	return &AuthController{authService: authService}
}

func (c *AuthController) Register(ctx echo.Context) error {
	var req dto.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	user, err := c.authService.Register(ctx.Request().Context(), req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			logrus.WithField("email", req.Email).Warn("Register failed: user already exists")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "username or email already exists"})
		case errors.Is(err, service.ErrInvalidRole):
			logrus.WithField("email", req.Email).Warn("Register failed: invalid role")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "role must be user or admin"})
		case errors.Is(err, service.ErrWeakPassword):
			logrus.WithField("email", req.Email).Warn("Register failed: weak password")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, dto.RegisterResponse{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Message:  "registration successful, please check your email to verify your account",
	})
}

func (c *AuthController) VerifyEmail(ctx echo.Context) error {
	var req dto.VerifyEmailRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind verify email request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Verify email validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Verify email request received")
	if err := c.authService.VerifyEmail(ctx.Request().Context(), req.Email, req.Token); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			logrus.WithField("email", req.Email).Warn("Verify email failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		case errors.Is(err, service.ErrAlreadyVerified):
			logrus.WithField("email", req.Email).Warn("Verify email failed: already verified")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "account is already verified"})
		case errors.Is(err, service.ErrInvalidToken):
			logrus.WithField("email", req.Email).Warn("Verify email failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid token"})
		case errors.Is(err, service.ErrTokenExpired):
			logrus.WithField("email", req.Email).Warn("Verify email failed: token expired")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "token has expired"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Verify email failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Email verified")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "email verified successfully"})
}

func (c *AuthController) Login(ctx echo.Context) error {
	var req dto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	result, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid email or password"})
		case errors.Is(err, service.ErrAccountNotVerified):
			logrus.WithField("email", req.Email).Warn("Login failed: account not verified")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "please verify your email first"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Login successful")
	return ctx.JSON(http.StatusOK, dto.LoginResponse{
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         dto.NewUserProfile(result.User),
	})
}

func (c *AuthController) Logout(ctx echo.Context) error {
	var req dto.LogoutRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind logout request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Logout validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Logout failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "unauthorized"})
	}

	logrus.WithField("user_id", userID).Info("Logout request received")
	if err := c.authService.Logout(ctx.Request().Context(), userID, req.RefreshToken); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Logout failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("user_id", userID).Info("Logout successful")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out successfully"})
}

func (c *AuthController) RefreshToken(ctx echo.Context) error {
	var req dto.RefreshTokenRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind refresh token request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Refresh token validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.Info("Refresh token request received")
	result, err := c.authService.RefreshToken(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Refresh token failed: invalid or expired token")
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "invalid or expired refresh token"})
		}
		logrus.WithError(err).Error("Refresh token failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.Info("Refresh token successful")
	return ctx.JSON(http.StatusOK, dto.LoginResponse{
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         dto.NewUserProfile(result.User),
	})
}

func (c *AuthController) ResendVerification(ctx echo.Context) error {
	var req dto.ResendVerificationRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind resend verification request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Resend verification validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Resend verification request received")
	if err := c.authService.ResendVerification(ctx.Request().Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			logrus.WithField("email", req.Email).Warn("Resend verification failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		case errors.Is(err, service.ErrAlreadyVerified):
			logrus.WithField("email", req.Email).Warn("Resend verification failed: already verified")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "account is already verified"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Resend verification failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Verification email resent")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "verification email sent"})
}

// ForgotPassword surfaces a 404 for unknown emails, matching the upstream
// behavior this service replaces. An unconditional 200 would avoid leaking
// which emails hold accounts; changing that is a deliberate policy decision,
// not a drive-by fix.
func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	var req dto.ForgotPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Forgot password validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Password reset requested")
	if err := c.authService.RequestPasswordReset(ctx.Request().Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("email", req.Email).Warn("Password reset failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user with this email does not exist"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Request password reset failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Password reset link sent")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "password reset link sent to your email"})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	var req dto.ResetPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Reset password validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.Info("Reset password request received")
	if err := c.authService.ResetPassword(ctx.Request().Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			logrus.Warn("Reset password failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid token"})
		case errors.Is(err, service.ErrTokenExpired):
			logrus.Warn("Reset password failed: token expired")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "token has expired"})
		case errors.Is(err, service.ErrWeakPassword):
			logrus.Warn("Reset password failed: weak password")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		}
		logrus.WithError(err).Error("Reset password failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "password reset successfully"})
}

func (c *AuthController) ChangePassword(ctx echo.Context) error {
	var req dto.ChangePasswordRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Change password validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Change password failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "unauthorized"})
	}

	logrus.WithField("user_id", userID).Info("Change password request received")
	err := c.authService.ChangePassword(ctx.Request().Context(), userID, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			logrus.WithField("user_id", userID).Warn("Change password failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		case errors.Is(err, service.ErrPasswordMismatch):
			logrus.WithField("user_id", userID).Warn("Change password failed: old password mismatch")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "current password is incorrect"})
		case errors.Is(err, service.ErrConfirmMismatch):
			logrus.WithField("user_id", userID).Warn("Change password failed: confirmation mismatch")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "password confirmation does not match"})
		case errors.Is(err, service.ErrWeakPassword):
			logrus.WithField("user_id", userID).Warn("Change password failed: weak password")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Change password failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("user_id", userID).Info("Password changed")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "password changed successfully"})
}
