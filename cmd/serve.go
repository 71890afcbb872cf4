package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/metrics"
	"github.com/lehigh-university-libraries/doiregistry/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the DOI API over HTTP",
	Long: `Starts the HTTP API. With kafka brokers configured, events are also
consumed from the configured topic into the store.

Examples:
  doiregistry serve
  doiregistry serve --addr :9000 --store sqlite --store-path doi.db
  DOIREGISTRY_KAFKA_BROKERS=kafka:9092 doiregistry serve --store postgres --store-dsn "$DSN"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("redis", "", "redis address for the aggregate cache")
	serveCmd.Flags().StringSlice("kafka-brokers", nil, "kafka brokers to consume events from")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("cache.redis_addr", serveCmd.Flags().Lookup("redis"))
	_ = viper.BindPFlag("kafka.brokers", serveCmd.Flags().Lookup("kafka-brokers"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	svc, closeCache, err := newService(store, m)
	if err != nil {
		return err
	}
	defer closeCache()

	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Group:   cfg.Kafka.Group,
		}, store)
		if err != nil {
			return err
		}
		consumer.OnIngest = m.AddEventsIngested
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Event consumer stopped", "err", err)
			}
		}()
		slog.Info("Consuming events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(svc, server.WithEventSink(store), server.WithMetrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
