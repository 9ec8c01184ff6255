package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/applypilot/applypilot/internal/api"
	loggerpkg "github.com/applypilot/applypilot/internal/logger"
	"github.com/applypilot/applypilot/internal/scheduler"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultPort = 8080

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the campaign API and the recurring dispatch scheduler",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := loggerpkg.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting applypilot", zap.String("version", version))

	st, err := newStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("building stores", zap.Error(err))
	}
	defer st.Close()

	engine, err := newRunner(ctx, config, st, logger)
	if err != nil {
		logger.Fatal("building the runner", zap.Error(err))
	}

	interval := time.Duration(0)
	if config.Runner != nil {
		interval = config.Runner.Interval
	}

	sched := scheduler.New(interval, logger, func(ctx context.Context) error {
		_, err := engine.Tick(ctx)
		return err
	})
	go sched.Start(ctx)

	handler := api.NewHandler(st.profiles, st.campaigns, st.ledger, engine, logger)

	port := defaultPort
	if config.Server != nil && config.Server.Port != 0 {
		port = config.Server.Port
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}

	logger.Info("stopped")
}
