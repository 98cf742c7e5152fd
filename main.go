package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"home-energy/internal/audit"
	"home-energy/internal/auth"
	billingapp "home-energy/internal/billing/application"
	billing "home-energy/internal/billing/domain"
	billingmemory "home-energy/internal/billing/infrastructure/memory"
	billingpostgres "home-energy/internal/billing/infrastructure/postgres"
	"home-energy/internal/config"
	"home-energy/internal/observability/metrics"
	"home-energy/internal/report/application"
	report "home-energy/internal/report/domain"
	reporthttp "home-energy/internal/report/interfaces"
	"home-energy/internal/telemetry/infrastructure/influx"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	opts, err := config.Load(os.Getenv("OPTIONS_FILE"))
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	loc, err := opts.Location()
	if err != nil {
		logger.Fatalf("timezone error: %v", err)
	}

	var db *sql.DB
	if dsn := getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	} else {
		logger.Printf("no DATABASE_URL set; billing and audit run in memory")
	}

	metrics.Init(db, logger)

	reader, err := influx.NewReader(opts.Influx.URL, opts.Influx.Token, opts.Influx.Org, opts.Influx.Bucket, loc, logger)
	if err != nil {
		logger.Fatalf("influx reader error: %v", err)
	}
	defer reader.Close()

	areas, err := report.NewAreaRegistry(opts.AreaDefinitions())
	if err != nil {
		logger.Fatalf("area registry error: %v", err)
	}

	cache := application.NewMonthCache()
	service, err := application.NewMonthService(
		reader,
		areas,
		application.Sensors{
			ElectricityPrice: opts.Sensors.ElectricityPrice,
			TotalMeter:       opts.Sensors.TotalMeter,
		},
		opts.CostConfig(),
		cache,
		application.SystemClock{},
		loc,
		logger,
	)
	if err != nil {
		logger.Fatalf("month service error: %v", err)
	}

	var billingRepo billing.Repository
	var auditLogger audit.Logger
	if db != nil {
		billingRepo = billingpostgres.NewRepository(db)
		auditLogger = audit.LogFallback{Repo: audit.NewRepository(db), Logger: logger}
	} else {
		billingRepo = billingmemory.NewRepository()
		auditLogger = audit.LogFallback{Logger: logger}
	}
	billingService, err := billingapp.NewService(billingRepo, nil, logger)
	if err != nil {
		logger.Fatalf("billing service error: %v", err)
	}

	reportHandler, err := reporthttp.NewReportHandler(service, billingService, reader, auditLogger, loc, logger)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/reports/monthly", reportHandler)
	mux.Handle("/api/v1/reports/invoice", reportHandler)
	mux.Handle("/api/v1/reports/invoice/", reportHandler)
	mux.Handle("/api/v1/cache/clear", reportHandler)
	mux.Handle("/api/v1/sensors", reportHandler)
	mux.Handle("/api/v1/energy/history", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpAddr := getenvDefault("HTTP_ADDR", ":8080")
	handler := http.Handler(mux)
	if secret := getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")); secret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(secret), policy).Wrap(handler)
	} else {
		logger.Printf("AUTH_JWT_SECRET not set; API runs unauthenticated")
	}

	server := &http.Server{Addr: httpAddr, Handler: loggingMiddleware(handler, logger)}
	logger.Printf("http listening on %s", httpAddr)
	logger.Fatal(server.ListenAndServe())
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
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
