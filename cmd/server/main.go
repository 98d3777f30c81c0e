package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"triage_service/config"
	"triage_service/internal/clients"
	"triage_service/internal/delivery"
	grpcHandler "triage_service/internal/delivery/grpc"
	"triage_service/internal/domain"
	"triage_service/internal/proxy"
	"triage_service/internal/repository"
	"triage_service/internal/storage"
	"triage_service/internal/usecase"
	"triage_service/pkg/db"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const batchConcurrency = 4

func main() {
	logger := setupLogger("info")

	cfg := config.LoadConfig(logger)

	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level '%s' in config, using default 'info'. Error: %v", cfg.LogLevel, err)
	} else {
		logger.SetLevel(logLevel)
	}
	if logLevel != logrus.DebugLevel && logLevel != logrus.TraceLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info("Starting Triage Service...")

	ctx := context.Background()

	users, sessions, patients, closeStore := buildStores(ctx, cfg, logger)
	defer closeStore()

	vision := clients.NewDeepseekClient(clients.DeepseekConfig{
		Endpoint: cfg.DeepseekChatURL,
		APIKey:   cfg.DeepseekAPIKey,
		Model:    cfg.DeepseekModel,
		Timeout:  cfg.UpstreamTimeout,
		Retry: clients.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Backoff:     clients.LinearBackoff(cfg.RetryBackoffUnit),
			ShouldRetry: clients.RetryOnNetworkOrServerError,
		},
	}, logger)

	var archive domain.ImageArchive
	if cfg.ImageBucket != "" {
		s3Client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatalf("Failed to create S3 client: %v", err)
		}
		archive = storage.NewS3ImageStore(s3Client, cfg.ImageBucket, "diagnosis", logger)
		logger.Infof("Uploaded images will be archived to bucket %s", cfg.ImageBucket)
	}

	authUseCase := usecase.NewAuthUseCase(users, sessions, logger)
	patientUseCase := usecase.NewPatientUseCase(patients, logger)
	diagnosisUseCase := usecase.NewDiagnosisUseCase(vision, archive, batchConcurrency, logger)
	syndromeUseCase := usecase.NewSyndromeUseCase(logger)

	chatProxy, err := proxy.NewChatProxy(proxy.ChatProxyConfig{
		Target:  cfg.DeepseekChatURL,
		APIKey:  cfg.DeepseekAPIKey,
		Timeout: cfg.UpstreamTimeout,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create chat proxy: %v", err)
	}

	if err := delivery.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register request validators: %v", err)
	}
	router := delivery.NewRouter(delivery.RouterConfig{
		Auth:          authUseCase,
		Patients:      patientUseCase,
		Diagnosis:     diagnosisUseCase,
		Syndrome:      syndromeUseCase,
		Treatments:    usecase.NewTreatmentCatalog(),
		ChatProxy:     chatProxy,
		APIKeySet:     cfg.UpstreamConfigured(),
		MaxImageBytes: cfg.MaxImageBytes,
		AllowOrigins:  cfg.CORSAllowedOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to serve HTTP: %v", err)
		}
		logger.Info("HTTP server stopped serving.")
	}()

	var grpcServer *grpc.Server
	if cfg.GrpcPort != "" {
		lis, err := net.Listen("tcp", cfg.GrpcPort)
		if err != nil {
			logger.Fatalf("Failed to listen on port %s: %v", cfg.GrpcPort, err)
		}
		grpcServer = grpc.NewServer(grpcHandler.ServerOptions(cfg.MaxImageBytes)...)
		grpcHandler.RegisterDiagnosisServiceServer(grpcServer,
			grpcHandler.NewDiagnosisHandler(diagnosisUseCase, syndromeUseCase, cfg.MaxImageBytes, logger))
		reflection.Register(grpcServer)

		go func() {
			logger.Infof("gRPC server listening on %s", cfg.GrpcPort)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Fatalf("Failed to serve gRPC: %v", err)
			}
			logger.Info("gRPC server stopped serving.")
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Warn("Shutdown signal received...")

	// in-flight diagnoses may take up to the upstream timeout per attempt
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server gracefully stopped.")
	}
	logger.Info("Triage Service shut down gracefully.")
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using default 'info'. Error: %v", level, err)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	return logger
}

// buildStores picks the repositories for the configured backend. Sessions
// stay in memory either way.
func buildStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (domain.UserRepository, domain.SessionStore, domain.PatientRepository, func()) {
	sessions := repository.NewMemorySessionStore(logger)

	if cfg.StoreBackend != config.BackendPostgres {
		logger.Info("Using in-memory stores")
		return repository.NewMemoryUserRepository(logger), sessions, repository.NewMemoryPatientRepository(logger), func() {}
	}

	logger.Info("Connecting to database...")
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Database connection established successfully.")

	if err := repository.EnsureUserSchema(ctx, sqlDB); err != nil {
		logger.Fatalf("Failed to prepare users table: %v", err)
	}
	gormDB, err := db.Gorm(sqlDB)
	if err != nil {
		logger.Fatalf("Failed to open gorm session: %v", err)
	}
	if err := repository.MigratePatients(gormDB); err != nil {
		logger.Fatalf("Failed to migrate patients table: %v", err)
	}

	closeDB := func() {
		if err := sqlDB.Close(); err != nil {
			logger.Errorf("Error closing database connection: %v", err)
		} else {
			logger.Info("Database connection closed.")
		}
	}
	return repository.NewPostgresUserRepository(sqlDB, logger), sessions,
		repository.NewGormPatientRepository(gormDB, logger), closeDB
}
