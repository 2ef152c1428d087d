package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/clinical"
	"github.com/hms/hms/internal/domain/diagnostics"
	"github.com/hms/hms/internal/domain/encounter"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/medication"
	"github.com/hms/hms/internal/domain/surgery"
	"github.com/hms/hms/internal/domain/user"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/reporting"
	"github.com/hms/hms/internal/platform/seqid"
	"github.com/hms/hms/internal/platform/telemetry"
	"github.com/hms/hms/internal/platform/validate"
	"github.com/hms/hms/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account, including admins",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			fullName, _ := cmd.Flags().GetString("full-name")
			role, _ := cmd.Flags().GetString("role")
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			if fullName == "" {
				fullName = username
			}

			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				svc := user.NewService(user.NewRepo(pool), nil, zerolog.Nop())
				u, err := svc.CreateUser(ctx, username, password, fullName, role)
				if err != nil {
					return err
				}
				fmt.Printf("Created %s user %s (%s)\n", u.Role, u.Username, u.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Initial password (8 characters or more)")
	createCmd.Flags().String("full-name", "", "Display name")
	createCmd.Flags().String("role", auth.RoleAdmin, "One of admin, doctor, nurse, pharmacist, lab_technician, receptionist")

	cmd.AddCommand(createCmd)
	return cmd
}

// withPool loads config, connects and runs fn against the pool.
func withPool(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics := telemetry.New(nil)
	metrics.RegisterPoolStats(func() telemetry.PoolSnapshot {
		s := pool.Stat()
		return telemetry.PoolSnapshot{Total: s.TotalConns(), Idle: s.IdleConns(), Acquired: s.AcquiredConns()}
	})

	// Cache: Redis when configured, otherwise in-process.
	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		store = cache.NewRedisStore(client)
		logger.Info().Msg("using redis cache")
	}
	readCache := cache.New(store, cfg.CacheTTL, logger).WithRecorder(metrics)

	e := newServer(cfg, logger, metrics)
	e.GET("/health/db", db.HealthHandler(pool))

	tx := db.NewTxRunner(pool)
	seq := seqid.NewGenerator(pool)
	retrier := seqid.NewRetrier(logger, metrics.IdentifierRetry)
	issuer := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)

	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewRegistrationRepo(pool),
		tx, seq, retrier, readCache, logger)
	svcs := services{
		users:    user.NewService(user.NewRepo(pool), issuer, logger),
		identity: identitySvc,
		medication: medication.NewService(medication.NewMedicineRepo(pool), medication.NewPrescriptionRepo(pool),
			identitySvc, tx, seq, retrier, readCache, logger).
			WithRecorder(metrics).
			WithTaxRate(cfg.TaxRate),
		diagnostics: diagnostics.NewService(diagnostics.NewLabTestRepo(pool), identitySvc, tx, readCache, logger),
		encounter: encounter.NewService(encounter.NewDischargeRepo(pool), encounter.NewConsultationRepo(pool),
			identitySvc, readCache, logger),
		clinical: clinical.NewService(clinical.NewHistoryRepo(pool), identitySvc, readCache, logger),
		surgery: surgery.NewService(surgery.NewCaseSheetRepo(pool), identitySvc, tx, seq, retrier,
			readCache, logger),
		reporting: reporting.NewService(reporting.NewRepo(pool), readCache, loc,
			medication.DefaultLowStockThreshold, logger),
	}
	svcs.register(e.Group("/api"), cfg)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with the global middleware chain and the
// unauthenticated endpoints.
func newServer(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierror.Handler(logger)
	e.Validator = validate.New()

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		SigningKey: []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", metrics.Handler())
	return e
}

type services struct {
	users       *user.Service
	identity    *identity.Service
	medication  *medication.Service
	diagnostics *diagnostics.Service
	encounter   *encounter.Service
	clinical    *clinical.Service
	surgery     *surgery.Service
	reporting   *reporting.Service
}

// register mounts every domain handler on api.
func (s services) register(api *echo.Group, cfg *config.Config) {
	loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateRPS,
		BurstSize:         cfg.LoginBurst,
		IdleTTL:           10 * time.Minute,
	})
	user.NewHandler(s.users).RegisterRoutes(api, loginLimit)
	identity.NewHandler(s.identity).RegisterRoutes(api)
	medication.NewHandler(s.medication).RegisterRoutes(api)
	diagnostics.NewHandler(s.diagnostics).RegisterRoutes(api)
	encounter.NewHandler(s.encounter).RegisterRoutes(api)
	clinical.NewHandler(s.clinical).RegisterRoutes(api)
	surgery.NewHandler(s.surgery).RegisterRoutes(api)
	reporting.NewHandler(s.reporting).RegisterRoutes(api)
}
