package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	HealthTimeout  time.Duration
}

// Open connects a Mongo client and returns it with the portal database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	logger.Info("connecting to database", "db", cfg.Database)

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetAppName("finance-portal"))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	logger.Info("successfully connected to database")
	return client, client.Database(cfg.Database), nil
}

// Close disconnects the client gracefully.
func Close(ctx context.Context, client *mongo.Client, logger *slog.Logger) {
	logger.Info("closing database connections")
	if client != nil {
		if err := client.Disconnect(ctx); err != nil {
			logger.Error("failed to disconnect mongo client", "error", err)
		}
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the primary to catch URI issues early.
func HealthCheck(ctx context.Context, client *mongo.Client, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
