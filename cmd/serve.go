package cmd

import (
	"database/sql"
	"net"

	"github.com/vantage-solutions/ms-go-accounts/app/controller"
	"github.com/vantage-solutions/ms-go-accounts/app/mailer"
	"github.com/vantage-solutions/ms-go-accounts/app/middleware"
	"github.com/vantage-solutions/ms-go-accounts/app/repository"
	"github.com/vantage-solutions/ms-go-accounts/app/service"
	"github.com/vantage-solutions/ms-go-accounts/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP server exposing the auth and user management API.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg)

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTokenTTL)
	sender := newSender(cfg)
	authService := service.NewAuthService(db, userRepo, refreshRepo, tokens, sender, cfg)
	userService := service.NewUserService(userRepo, refreshRepo)

	startHTTPServer(cfg, tokens, authService, userService)
}

func newSender(cfg *config.Config) mailer.Sender {
	if cfg.SMTP.Host == "" {
		logrus.Warn("SMTP_HOST not set, outbound mail will be logged only")
		return mailer.NewLogSender()
	}
	return mailer.NewSMTPSender(cfg.SMTP)
}

func configureLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func startHTTPServer(cfg *config.Config, tokens *service.TokenIssuer, authService *service.AuthService, userService *service.UserService) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authController := controller.NewAuthController(authService)
	userController := controller.NewUserController(userService)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	limiter := echomiddleware.RateLimiter(echomiddleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AuthRateLimit)))

	auth := e.Group("/auth", limiter)
	auth.POST("/register", authController.Register)
	auth.GET("/verify-email", authController.VerifyEmail)
	auth.POST("/login", authController.Login)
	auth.POST("/refresh-token", authController.RefreshToken)
	auth.POST("/resend-verification", authController.ResendVerification)
	auth.POST("/forgot-password", authController.ForgotPassword)
	auth.POST("/reset-password", authController.ResetPassword)

	authProtected := e.Group("/auth", authMiddleware.RequireAuth)
	authProtected.PUT("/logout", authController.Logout)
	authProtected.POST("/change-password", authController.ChangePassword)

	users := e.Group("/users", authMiddleware.RequireAuth)
	users.GET("/profile", userController.Profile)
	users.PUT("/profile", userController.UpdateProfile)

	admin := users.Group("", authMiddleware.RequireRole(service.RoleAdmin))
	admin.GET("", userController.List)
	admin.GET("/:id", userController.Get)
	admin.PUT("/:id/role", userController.UpdateRole)
	admin.DELETE("/:id", userController.Delete)

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}
