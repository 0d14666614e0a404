package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/api"
	"github.com/imprecode/gestion-visitas/internal/approval"
	"github.com/imprecode/gestion-visitas/internal/config"
	"github.com/imprecode/gestion-visitas/internal/directory"
	"github.com/imprecode/gestion-visitas/internal/identity"
	"github.com/imprecode/gestion-visitas/internal/legalization"
	"github.com/imprecode/gestion-visitas/internal/notification"
	"github.com/imprecode/gestion-visitas/internal/reports"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"github.com/imprecode/gestion-visitas/internal/token"
	"github.com/imprecode/gestion-visitas/pkg/database"
	"github.com/imprecode/gestion-visitas/pkg/logging"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Local .env for development; ignored when absent
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting visit workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Legalization.UploadDir, 0755); err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db.DB, logger)
	visitRepo := repository.NewVisitRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)

	// Directory resolver: real LDAP or the bypass stub
	var resolver directory.Resolver
	if cfg.LDAP.Enabled {
		resolver = directory.NewLDAPResolver(directory.LDAPConfig{
			URL:          cfg.LDAP.URL,
			BindDN:       cfg.LDAP.BindDN,
			BindPassword: cfg.LDAP.BindPassword,
			BaseDN:       cfg.LDAP.BaseDN,
			UserFilter:   cfg.LDAP.UserFilter,
		}, logger)
	} else {
		logger.Warn("Directory bypass enabled, all logins use the stub")
		resolver = directory.NewStubResolver(map[string]directory.Attributes{
			"demo@example.com": {DisplayName: "Demo Gestor", Title: "Gerente de cuenta"},
		}, logger)
	}

	// Services
	tokens := token.NewService(token.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	identitySvc := identity.NewService(userRepo, resolver, directory.DefaultRules(), logger)
	sender := notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, logger)
	engine := approval.NewEngine(db, visitRepo, approvalRepo, userRepo, sender, approval.DefaultRolePolicy, logger)
	legalizationSvc := legalization.NewService(legalization.Config{
		GraceDays: cfg.Legalization.GraceDays,
		UploadDir: cfg.Legalization.UploadDir,
	}, visitRepo, invoiceRepo, logger)
	reportsSvc := reports.NewService(db.DB, visitRepo, invoiceRepo, userRepo, logger)

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	api.RegisterRoutes(router, api.Handlers{
		Auth:     api.NewAuthHandler(identitySvc, tokens, logger),
		Visits:   api.NewVisitHandler(engine, visitRepo, approvalRepo, invoiceRepo, logger),
		Approval: api.NewApprovalHandler(engine, userRepo, logger),
		Invoices: api.NewInvoiceHandler(legalizationSvc, logger),
		Users:    api.NewUserHandler(userRepo, identitySvc, logger),
		Reports:  api.NewReportHandler(reportsSvc, logger),
	}, tokens, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
