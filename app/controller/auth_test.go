package controller_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vantage-solutions/ms-go-accounts/app/controller"
	"github.com/vantage-solutions/ms-go-accounts/app/entity"
	"github.com/vantage-solutions/ms-go-accounts/app/service"

	"github.com/labstack/echo/v4"
)

type stubAuthFlow struct {
	registerUser  *entity.User
	registerErr   error
	verifyErr     error
	loginResult   *service.LoginResult
	loginErr      error
	logoutErr     error
	refreshResult *service.LoginResult
	refreshErr    error
	resendErr     error
	forgotErr     error
	resetErr      error
	changeErr     error

	verifiedEmail string
	verifiedToken string
}

func (s *stubAuthFlow) Register(_ context.Context, username, email, _, role string) (*entity.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	if s.registerUser != nil {
		return s.registerUser, nil
	}
	return &entity.User{ID: 1, Username: username, Email: email, Role: role}, nil
}

func (s *stubAuthFlow) VerifyEmail(_ context.Context, email, token string) error {
	s.verifiedEmail = email
	s.verifiedToken = token
	return s.verifyErr
}

func (s *stubAuthFlow) Login(_ context.Context, _, _ string) (*service.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuthFlow) Logout(_ context.Context, _ uint64, _ string) error {
	return s.logoutErr
}

func (s *stubAuthFlow) RefreshToken(_ context.Context, _ string) (*service.LoginResult, error) {
	return s.refreshResult, s.refreshErr
}

func (s *stubAuthFlow) ResendVerification(_ context.Context, _ string) error {
	return s.resendErr
}

func (s *stubAuthFlow) RequestPasswordReset(_ context.Context, _ string) error {
	return s.forgotErr
}

func (s *stubAuthFlow) ResetPassword(_ context.Context, _, _ string) error {
	return s.resetErr
}

func (s *stubAuthFlow) ChangePassword(_ context.Context, _ uint64, _, _, _ string) error {
	return s.changeErr
}

func invoke(t *testing.T, h echo.HandlerFunc, req *http.Request, setup func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestRegisterCreated(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{})

	body := `{"username":"alice","email":"alice@example.com","password":"secret1"}`
	rec := invoke(t, ctrl.Register, jsonRequest(http.MethodPost, "/auth/register", body), nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "registration successful") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRegisterMissingFields(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{})

	rec := invoke(t, ctrl.Register, jsonRequest(http.MethodPost, "/auth/register", `{"username":"alice"}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRegisterConflict(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{registerErr: service.ErrUserExists})

	body := `{"username":"alice","email":"alice@example.com","password":"secret1"}`
	rec := invoke(t, ctrl.Register, jsonRequest(http.MethodPost, "/auth/register", body), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already exists") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	weak := fmt.Errorf("%w: password must be at least 8 characters long", service.ErrWeakPassword)
	ctrl := controller.NewAuthController(&stubAuthFlow{registerErr: weak})

	body := `{"username":"alice","email":"alice@example.com","password":"abc"}`
	rec := invoke(t, ctrl.Register, jsonRequest(http.MethodPost, "/auth/register", body), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "at least 8 characters") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestVerifyEmailFromQueryParams(t *testing.T) {
	stub := &stubAuthFlow{}
	ctrl := controller.NewAuthController(stub)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify-email?email=alice%40example.com&token=verify-token", nil)
	rec := invoke(t, ctrl.VerifyEmail, req, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.verifiedEmail != "alice@example.com" || stub.verifiedToken != "verify-token" {
		t.Errorf("query params not bound: email=%q token=%q", stub.verifiedEmail, stub.verifiedToken)
	}
}

func TestVerifyEmailInvalidToken(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{verifyErr: service.ErrInvalidToken})

	req := httptest.NewRequest(http.MethodGet, "/auth/verify-email?email=alice%40example.com&token=bad", nil)
	rec := invoke(t, ctrl.VerifyEmail, req, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestLoginSuccess(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{
		loginResult: &service.LoginResult{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			ExpiresIn:    3600,
			User:         &entity.User{ID: 1, Username: "alice", Email: "alice@example.com", Role: "user", IsVerified: true},
		},
	})

	body := `{"email":"alice@example.com","password":"secret1"}`
	rec := invoke(t, ctrl.Login, jsonRequest(http.MethodPost, "/auth/login", body), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "access-token") || !strings.Contains(rec.Body.String(), "refresh-token") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("login response must not expose password material: %s", rec.Body.String())
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{loginErr: service.ErrInvalidCredentials})

	body := `{"email":"alice@example.com","password":"wrong"}`
	rec := invoke(t, ctrl.Login, jsonRequest(http.MethodPost, "/auth/login", body), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid email or password") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestLoginUnverifiedAccount(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{loginErr: service.ErrAccountNotVerified})

	body := `{"email":"alice@example.com","password":"secret1"}`
	rec := invoke(t, ctrl.Login, jsonRequest(http.MethodPost, "/auth/login", body), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "verify your email") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestLogout(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{})

	body := `{"refresh_token":"refresh-token"}`
	rec := invoke(t, ctrl.Logout, jsonRequest(http.MethodPut, "/auth/logout", body), func(c echo.Context) {
		c.Set("user_id", uint64(1))
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutWithoutIdentity(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{})

	body := `{"refresh_token":"refresh-token"}`
	rec := invoke(t, ctrl.Logout, jsonRequest(http.MethodPut, "/auth/logout", body), nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRefreshTokenInvalid(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{refreshErr: service.ErrInvalidToken})

	body := `{"refresh_token":"unknown"}`
	rec := invoke(t, ctrl.RefreshToken, jsonRequest(http.MethodPost, "/auth/refresh-token", body), nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{forgotErr: service.ErrUserNotFound})

	body := `{"email":"missing@example.com"}`
	rec := invoke(t, ctrl.ForgotPassword, jsonRequest(http.MethodPost, "/auth/forgot-password", body), nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "does not exist") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{resetErr: service.ErrTokenExpired})

	body := `{"token":"reset-token","new_password":"fresh-secret"}`
	rec := invoke(t, ctrl.ResetPassword, jsonRequest(http.MethodPost, "/auth/reset-password", body), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "expired") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestChangePasswordConfirmMismatch(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{changeErr: service.ErrConfirmMismatch})

	body := `{"old_password":"secret1","new_password":"fresh-secret","confirm_password":"different"}`
	rec := invoke(t, ctrl.ChangePassword, jsonRequest(http.MethodPost, "/auth/change-password", body), func(c echo.Context) {
		c.Set("user_id", uint64(1))
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "confirmation does not match") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestChangePasswordWithoutIdentity(t *testing.T) {
	ctrl := controller.NewAuthController(&stubAuthFlow{})

	body := `{"old_password":"secret1","new_password":"fresh-secret","confirm_password":"fresh-secret"}`
	rec := invoke(t, ctrl.ChangePassword, jsonRequest(http.MethodPost, "/auth/change-password", body), nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
