package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	node_client "github.com/gt-tallinn/node-client"
	httpinstrumentation "github.com/gt-tallinn/node-client/instrumentation/http"
	sqlinstrumentation "github.com/gt-tallinn/node-client/instrumentation/sql"
	"github.com/gt-tallinn/node-client/internal/ports/http_reporter"
	"github.com/gt-tallinn/node-client/pkg/config"
)

func main() {
	configDir := pflag.String("config", ".", "directory containing config.yaml")
	listen := pflag.String("listen", ":8080", "address of the demo server")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(*configDir, *listen, logger); err != nil {
		logger.Fatal().Err(err).Msg("node-client exited")
	}
}

func run(configDir, listen string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	tp, err := node_client.NewTracerProvider(cfg.Service)
	if err != nil {
		return fmt.Errorf("failed to create tracer provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	registry := prometheus.NewRegistry()
	tracker, err := node_client.New(&cfg,
		node_client.WithLogger(logger),
		node_client.WithTracerProvider(tp),
		node_client.WithRegisterer(registry),
	)
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}

	db, err := sqlinstrumentation.Open("sqlite3", "file:node-client-demo?mode=memory&cache=shared", tracker)
	if err != nil {
		return fmt.Errorf("failed to open instrumented db connection: %w", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	app := http.NewServeMux()
	app.HandleFunc("/", helloHandler)
	app.HandleFunc("/db", dbHandler(db))
	app.HandleFunc("/slow", slowHandler)

	mux := http.NewServeMux()
	mux.Handle("/", httpinstrumentation.NewMiddleware(tracker, app, "http-server"))
	mux.Handle(cfg.DebugEndpoint, http_reporter.NewHandler(tracker.Store()))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("listen", listen).
		Str("explorer", cfg.ExplorerURI).
		Str("debug", cfg.DebugEndpoint).
		Msg("node-client demo server started")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return tracker.Shutdown(shutdownCtx)
}

func helloHandler(w http.ResponseWriter, r *http.Request) {
	time.Sleep(50 * time.Millisecond)
	fmt.Fprintln(w, "Hello from the node-client demo!")
}

func slowHandler(w http.ResponseWriter, r *http.Request) {
	time.Sleep(600 * time.Millisecond)
	fmt.Fprintln(w, "This was a slow request.")
}

func dbHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row := db.QueryRowContext(r.Context(), "SELECT 'John Doe' as name")
		var name string
		if err := row.Scan(&name); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "User name from DB: %s\n", name)
	}
}
