package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"callinsight-server/pkg/analysis"
	"callinsight-server/pkg/config"
	http_server "callinsight-server/pkg/http"
	"callinsight-server/pkg/messaging"
	"callinsight-server/pkg/metrics"
	"callinsight-server/pkg/store"
	"callinsight-server/pkg/version"
)

var logger = logrus.New()

func main() {
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.WithField("version", version.Version).Info("Starting CallInsight server")

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ApplyLogging(logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply logging configuration")
	}

	metrics.Init(logger)
	metrics.EnableMetrics(cfg.HTTP.EnableMetrics)

	transcriptStore, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize transcript store")
	}
	defer closeStore()

	analyzer := analysis.NewAnalyzer(logger, transcriptStore)
	analyzer.SetPace(analysis.NewSpeechPace(
		cfg.Analysis.WordsPerMinute,
		cfg.Analysis.MinTurnGap,
		cfg.Analysis.MaxTurnGap,
	))

	if cfg.Messaging.AMQPUrl != "" {
		amqpClient := messaging.NewAMQPClient(logger, messaging.AMQPConfig{
			URL:          cfg.Messaging.AMQPUrl,
			QueueName:    cfg.Messaging.AMQPQueueName,
			ExchangeName: cfg.Messaging.AMQPExchange,
			RoutingKey:   cfg.Messaging.AMQPRoutingKey,
		})
		if err := amqpClient.Connect(); err != nil {
			logger.WithError(err).Warn("AMQP connection failed, continuing without result publication")
		} else {
			analyzer.SetPublisher(amqpClient)
			defer amqpClient.Disconnect()
		}
	}

	httpServer := http_server.NewServer(logger, &http_server.Config{
		Port:          cfg.HTTP.Port,
		ReadTimeout:   cfg.HTTP.ReadTimeout,
		WriteTimeout:  cfg.HTTP.WriteTimeout,
		EnableMetrics: cfg.HTTP.EnableMetrics,
	}, analyzer)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}

	logger.Info("CallInsight server stopped")
}

// buildStore selects the persistence backend. Without a database, an
// in-memory store keeps the service usable for development.
func buildStore(cfg *config.Config) (store.TranscriptStore, func() error, error) {
	if !cfg.Database.Enabled {
		logger.Warn("Database disabled, using in-memory transcript store")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}

	mysqlStore, err := store.NewMySQLStore(store.MySQLConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		SSLMode:         cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := mysqlStore.Migrate(); err != nil {
		mysqlStore.Close()
		return nil, nil, err
	}
	return mysqlStore, mysqlStore.Close, nil
}
