package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"smarthome-cloud/internal/audit"
	"smarthome-cloud/internal/auth"
	"smarthome-cloud/internal/cache"
	devicesapp "smarthome-cloud/internal/devices/application"
	devicesrepo "smarthome-cloud/internal/devices/infrastructure/postgres"
	deviceshttp "smarthome-cloud/internal/devices/interfaces/http"
	"smarthome-cloud/internal/observability/metrics"
	"smarthome-cloud/internal/reports"
	usersapp "smarthome-cloud/internal/users/application"
	usersrepo "smarthome-cloud/internal/users/infrastructure/postgres"
	usershttp "smarthome-cloud/internal/users/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	cacheCfg, err := cache.LoadConfig()
	if err != nil {
		logger.Fatalf("cache config error: %v", err)
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cacheCfg.Addr,
		Password: cacheCfg.Password,
		DB:       cacheCfg.DB,
	})
	cacheStore, err := cache.NewRedisStore(redisClient)
	if err != nil {
		logger.Fatalf("cache store error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	deviceRepo := devicesrepo.NewDeviceRepository(db)
	userRepo := usersrepo.NewUserRepository(db)

	deviceService, err := devicesapp.NewService(deviceRepo, cacheStore, cacheCfg.TTL(), logger)
	if err != nil {
		logger.Fatalf("device service error: %v", err)
	}
	userService, err := usersapp.NewService(userRepo, cacheStore, cacheCfg.TTL(), []byte(cfg.JWTSecret), cfg.TokenTTL, logger)
	if err != nil {
		logger.Fatalf("user service error: %v", err)
	}

	deviceHandler, err := deviceshttp.NewHandler(deviceService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}
	userHandler, err := usershttp.NewHandler(userService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("user handler error: %v", err)
	}
	exportHandler, err := reports.NewExportHandler(deviceService)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/api/users/login", "/api/users/register"},
		[]string{"/api/devices"},
	)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/devices", deviceHandler)
	mux.Handle("/api/devices/", deviceHandler)
	mux.Handle("/api/users", userHandler)
	mux.Handle("/api/users/", userHandler)
	mux.Handle("/api/exports/", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
	TokenTTL    time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":3000"),
		JWTSecret:   getenvDefault("JWT_SECRET", ""),
		TokenTTL:    getenvDuration("TOKEN_TTL", time.Hour),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, resp.status, duration)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
