package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dirport/internal/adapter/gateway"
	adapterhandler "dirport/internal/adapter/handler"
	infracache "dirport/internal/infrastructure/cache"
	"dirport/internal/infrastructure/directory"
	"dirport/internal/infrastructure/secret"
	infratoken "dirport/internal/infrastructure/token"
	"dirport/internal/usecase"

	"dirport/config"
	"dirport/internal/domain"
	appmiddleware "dirport/middleware"
	"dirport/utils/logger"
	"dirport/utils/otel"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Handle healthcheck subcommand (for Docker healthcheck in distroless image)
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := runHealthcheck(); err != nil {
			fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize OpenTelemetry
	otelCfg := otel.ConfigFromEnv()
	otelShutdown, err := otel.InitProvider(ctx, otelCfg)
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry, continuing without tracing", "error", err)
		otelCfg.Enabled = false
	}

	// Initialize structured logger
	logger.Init(otelCfg.Enabled)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "configuration loaded",
		"ldap_url", cfg.LDAPURL,
		"default_domain", cfg.DefaultDomain,
		"provider_url", cfg.ProviderURL,
		"pre_authentication", cfg.PreAuthentication,
		"port", cfg.Port)

	defaultDomain := domain.ParseIdentity(directory.DomainDN(cfg.DefaultDomain))

	// Directory infrastructure
	connector := directory.NewConnector(directory.ConnectorConfig{
		URL:          cfg.LDAPURL,
		BindDN:       cfg.LDAPBindDN,
		BindPassword: cfg.LDAPBindPassword,
		DialTimeout:  cfg.LDAPDialTimeout,
	})
	forest := directory.NewForestResolver(connector, directory.ForestResolverConfig{
		IncludedDomains: cfg.IncludedDomains,
		ExcludedDomains: cfg.ExcludedDomains,
		SchemaTTL:       cfg.SchemaTTL,
	}, slog.Default())
	profiles := directory.NewProfileLoader(connector, directory.ProfileLoaderConfig{
		UPNIdentity:            cfg.UPNIdentity,
		ExtraIdentityAttribute: cfg.ExtraIdentityAttribute,
		NestedGroups:           cfg.NestedGroups,
		NestedGroupBases:       cfg.NestedGroupsBases,
	}, slog.Default())
	validator := directory.NewValidator(connector, forest, profiles, directory.ValidatorConfig{
		DefaultDomain:  defaultDomain,
		TwoFactorGroup: cfg.TwoFactorGroup,
		UPNIdentity:    cfg.UPNIdentity,
	}, slog.Default())

	// Provider gateway and token infrastructure
	provider := gateway.NewProviderGateway(cfg.ProviderURL, cfg.ProviderAPIKey, 10*time.Second)
	verifier := infratoken.NewVerifier(ctx, infratoken.VerifierConfig{
		JWKSURL: provider.JWKSURL(),
		Issuer:  cfg.ProviderIssuer,
	}, slog.Default())
	principals := infratoken.NewPrincipalIssuer(infratoken.PrincipalConfig{
		Secret:   cfg.PrincipalSecret,
		Issuer:   cfg.PrincipalIssuer,
		Audience: cfg.PrincipalAudience,
	})
	csrfGenerator := infratoken.NewHMACCSRFGenerator(cfg.CSRFSecret)

	// Continuation state
	continuations := infracache.NewContinuationCache(
		cfg.CacheByteBudget, cfg.ExpiredPasswordTTL, cfg.ContinuationTTL)
	protector := secret.NewAEADProtector(cfg.ProtectorKey)

	// Usecases
	signInUC := usecase.NewSignIn(verifier, principals, slog.Default())
	credentialLoginUC := usecase.NewCredentialLogin(validator, provider, continuations, protector,
		usecase.CredentialLoginConfig{
			CallbackURL:        cfg.CallbackURL,
			UPNIdentity:        cfg.UPNIdentity,
			PasswordManagement: cfg.PasswordManagement,
		}, nil, slog.Default())
	identityLoginUC := usecase.NewIdentityLogin(validator, provider, verifier, continuations, protector, signInUC,
		usecase.IdentityLoginConfig{
			CallbackURL:        cfg.CallbackURL,
			UPNIdentity:        cfg.UPNIdentity,
			TwoFactorGroup:     cfg.TwoFactorGroup,
			PasswordManagement: cfg.PasswordManagement,
		}, nil, slog.Default())
	changePasswordUC := usecase.NewChangePassword(validator, continuations, protector, credentialLoginUC, slog.Default())
	unlockUC := usecase.NewUnlockAccount(validator, slog.Default())
	csrfUC := usecase.NewGenerateCSRF(csrfGenerator, slog.Default())

	// Handlers
	authHandler := adapterhandler.NewAuthHandler(
		credentialLoginUC, identityLoginUC, signInUC, csrfUC, gateway.NoopCaptcha{},
		adapterhandler.AuthConfig{
			PreAuthentication:   cfg.PreAuthentication,
			SessionCookieName:   cfg.SessionCookieName,
			PrincipalCookieName: cfg.PrincipalCookieName,
			SecureCookies:       cfg.SecureCookies,
			RequireCSRF:         cfg.RequireCSRF,
		})
	passwordHandler := adapterhandler.NewPasswordHandler(changePasswordUC, unlockUC)
	healthHandler := adapterhandler.NewHealthHandler()

	// Setup Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = adapterhandler.NewRequestValidator()

	// Security middleware
	e.Use(appmiddleware.SecurityHeaders())

	// OpenTelemetry tracing
	if otelCfg.Enabled {
		e.Use(otelecho.Middleware(otelCfg.ServiceName))
		e.Use(appmiddleware.OTelStatusMiddleware())
	}

	// Request logging
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				slog.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				slog.ErrorContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())

	// Rate limiters per endpoint group. Login endpoints are the brute-force
	// surface; the callback only carries provider-signed tokens.
	loginRL := appmiddleware.NewRateLimiter(10.0/60.0, 5)     // 10 req/min
	callbackRL := appmiddleware.NewRateLimiter(30.0/60.0, 10) // 30 req/min
	formRL := appmiddleware.NewRateLimiter(30.0/60.0, 10)     // 30 req/min
	defer loginRL.Stop()
	defer callbackRL.Stop()
	defer formRL.Stop()

	// Login flow
	e.GET("/login/form", authHandler.HandleForm, formRL.Middleware())
	e.POST("/login", authHandler.HandleLogin, loginRL.Middleware())
	e.POST("/login/identity", authHandler.HandleIdentity, loginRL.Middleware())
	e.GET("/callback", authHandler.HandleCallback, callbackRL.Middleware())
	e.POST("/login/continue", authHandler.HandleContinue, loginRL.Middleware())
	e.POST("/password/change", passwordHandler.HandleChange, loginRL.Middleware())
	e.GET("/health", healthHandler.Handle)

	// Post-session routes (principal cookie required)
	accountGroup := e.Group("/account",
		loginRL.Middleware(),
		appmiddleware.SessionAuth(principals, cfg.PrincipalCookieName),
	)
	accountGroup.POST("/unlock", passwordHandler.HandleUnlock)

	// Start server with errgroup for graceful shutdown
	address := fmt.Sprintf(":%s", cfg.Port)
	slog.InfoContext(ctx, "starting dirport server", "address", address)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelShutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited properly")
}

// runHealthcheck performs a health check against the local server.
func runHealthcheck() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8888"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%s/health", port))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}
	return nil
}
