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

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/notification"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/payroll-engine/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/email"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/kafka"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/renderer"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	"github.com/cmlabs-hris/payroll-engine/internal/service/deduction"
	exportService "github.com/cmlabs-hris/payroll-engine/internal/service/export"
	notificationService "github.com/cmlabs-hris/payroll-engine/internal/service/notification"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/service/payslip"
	rateTableService "github.com/cmlabs-hris/payroll-engine/internal/service/ratetable"
	timeEntryService "github.com/cmlabs-hris/payroll-engine/internal/service/timeentry"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
)

type repositories struct {
	tx        database.Transactor
	employee  employee.EmployeeRepository
	timeEntry timeentry.TimeEntryRepository
	run       payroll.PayrollRunRepository
	slip      payroll.PaySlipRepository
	rateTable ratetable.RateTableRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(app config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(app.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logFormat := httplog.SchemaECS.Concise(app.Env == "development")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-engine"),
		slog.String("env", app.Env),
	)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := newRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	// Rate tables
	sources := make([]ratetable.Source, 0, 3)
	if cfg.RateTable.File != "" {
		sources = append(sources, rateTableService.FileSource{Path: cfg.RateTable.File})
	}
	if cfg.RateTable.UseDatabase {
		sources = append(sources, rateTableService.RepositorySource{Repo: repos.rateTable})
	}
	sources = append(sources, rateTableService.DefaultSource{})
	rateSvc := rateTableService.NewRateTableService(repos.rateTable, sources...)
	if err := rateSvc.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load rate tables: %w", err)
	}

	locker, err := newLocker(cfg)
	if err != nil {
		return err
	}

	fileStorage, err := newStorage(cfg.Storage)
	if err != nil {
		return err
	}

	var pdfRenderer exportService.PayslipRenderer
	if cfg.Renderer.URL != "" {
		pdfRenderer = renderer.NewClient(cfg.Renderer)
	}
	exporter := exportService.NewExportService(repos.run, repos.slip, fileStorage, pdfRenderer)

	var publisher notification.EventPublisher = notification.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := kafka.NewPayslipPublisher(cfg.Kafka)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("failed to close kafka writer", "error", err)
			}
		}()
		publisher = kafkaPublisher
	}

	var mailer notification.Mailer
	if cfg.Email.Enabled {
		mailer, err = newMailer(cfg.Email)
		if err != nil {
			return err
		}
	}

	dispatcher := notificationService.NewDispatcher(notificationService.Dependencies{
		SlipRepo:     repos.slip,
		EmployeeRepo: repos.employee,
		Publisher:    publisher,
		Mailer:       mailer,
		Renderer:     pdfRenderer,
	}, notificationService.Config{})
	defer dispatcher.Stop()

	ledger := timeEntryService.NewLedger(repos.timeEntry, repos.tx)
	builder := payslip.NewBuilder(ledger, deduction.NewCalculator(rateSvc), nil)
	payrollSvc := payrollService.NewPayrollService(payrollService.Dependencies{
		Tx:           repos.tx,
		RunRepo:      repos.run,
		SlipRepo:     repos.slip,
		EmployeeRepo: repos.employee,
		Ledger:       ledger,
		Builder:      builder,
		Locker:       locker,
		Exporter:     exporter,
		Notifier:     dispatcher,
	}, payrollService.Options{
		Workers:      cfg.Payroll.Workers,
		AbortOnError: cfg.Payroll.AbortOnError,
		LockTTL:      cfg.Payroll.LockTTL,
		ExportOnPaid: cfg.Payroll.ExportOnPaid,
		NotifyOnPaid: cfg.Payroll.NotifyOnPaid,
	})
	defer payrollSvc.Wait()

	scheduler := cron.NewScheduler()
	cron.NewPayrollJobs(rateSvc, repos.run, exporter, cfg.RateTable.ReloadInterval).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT)
	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{App: cfg.App, RateLimit: cfg.RateLimit, Logger: logger},
		JWTService,
		appHTTP.NewPayrollHandler(payrollSvc, exporter),
		appHTTP.NewTimeEntryHandler(timeEntryService.NewTimeEntryService(repos.timeEntry, repos.employee)),
		appHTTP.NewRateTableHandler(rateSvc),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", server.Addr, "db_driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Database.Driver == "memory" {
		store := memory.NewStore()
		seeded := fixtures.SeedEmployees(store)
		slog.Info("using in-memory store", "demo_employees", len(seeded))
		return &repositories{
			tx:        store,
			employee:  memory.NewEmployeeRepository(store),
			timeEntry: memory.NewTimeEntryRepository(store),
			run:       memory.NewPayrollRunRepository(store),
			slip:      memory.NewPaySlipRepository(store),
			rateTable: memory.NewRateTableRepository(store),
			close:     func() {},
		}, nil
	}

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgresql.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &repositories{
		tx:        postgresql.NewTxManager(db),
		employee:  postgresql.NewEmployeeRepository(db),
		timeEntry: postgresql.NewTimeEntryRepository(db),
		run:       postgresql.NewPayrollRunRepository(db),
		slip:      postgresql.NewPaySlipRepository(db),
		rateTable: postgresql.NewRateTableRepository(db),
		close:     db.Close,
	}, nil
}

func newLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.Payroll.LockBackend != "redis" {
		return lock.NewMemoryLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return lock.NewRedisLocker(client, "payroll:lock:", cfg.Payroll.LockOwner), nil
}

func newStorage(cfg config.StorageConfig) (storage.FileStorage, error) {
	switch cfg.Type {
	case "local":
		fileStorage, err := storage.NewLocalStorage(cfg.BasePath, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return fileStorage, nil
	case "s3":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.S3Region)})
		if err != nil {
			return nil, fmt.Errorf("failed to create aws session: %w", err)
		}
		return storage.NewS3Storage(sess, cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newMailer(cfg config.EmailConfig) (notification.Mailer, error) {
	var transport email.Transport
	switch cfg.Transport {
	case "ses":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.SESRegion)})
		if err != nil {
			return nil, fmt.Errorf("failed to create aws session: %w", err)
		}
		transport = email.NewSESTransport(ses.New(sess))
	case "smtp":
		transport = email.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	default:
		transport = email.LogTransport{}
	}

	mailer, err := email.NewEmailService(cfg, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email service: %w", err)
	}
	return mailer, nil
}
