package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"certificate-transfer/internal/config"
	"certificate-transfer/internal/transfer/application"
	transfer "certificate-transfer/internal/transfer/domain"
)

const programName = "transfer-engine"

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand(logger).ExecuteContext(ctx); err != nil {
		logger.Printf("%s: %v", programName, err)
		os.Exit(1)
	}
}

func rootCommand(logger *log.Logger) *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Moves granular certificates between organizations according to transfer agreements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (TRANSFER_CONFIG)")

	rootCmd.AddCommand(serveCommand(logger, &configPath))
	rootCmd.AddCommand(runOnceCommand(logger, &configPath))
	rootCmd.AddCommand(reconcileCommand(logger, &configPath))
	return rootCmd
}

func serveCommand(logger *log.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatcher loop and serve /metrics and /healthz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return serve(cmd.Context(), cfg, app, logger)
		},
	}
}

func runOnceCommand(logger *log.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Execute a single dispatcher pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.engine.Tick(cmd.Context(), application.SystemClock{}.Now())
		},
	}
}

func reconcileCommand(logger *log.Logger, configPath *string) *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the request statuses of one organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			if orgID == "" {
				return errors.New("--organization is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			rows, err := app.utility.ReconcileOrganization(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			pending := 0
			for _, row := range rows {
				if row.Status == transfer.StatusPending {
					pending++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "organization=%s requests=%d pending=%d\n", orgID, len(rows), pending)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "organization", "", "organization id")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, app *app, logger *log.Logger) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.db.PingContext(pingCtx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	scheduler := application.NewScheduler(app.engine, cfg.Transfer.RunInterval, application.SystemClock{}, logger)
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(schedulerDone)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	<-schedulerDone
	logger.Printf("%s stopped", programName)
	return err
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
