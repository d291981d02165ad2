package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"studydocs-backend/internal/shared/telemetry"
)

// Collection names shared by every Mongo-backed repository.
const (
	DocumentsCollection  = "documents"
	FlashcardsCollection = "flashcards"
	QuizzesCollection    = "quizzes"
)

// Options controls the client pool.
type Options struct {
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
}

// DefaultOptions returns defaults for long-running processes.
func DefaultOptions() Options {
	return Options{
		MaxPoolSize:    20,
		ConnectTimeout: 10 * time.Second,
		PingTimeout:    5 * time.Second,
	}
}

// Connect creates a client for uri, verifies it with a ping and returns the named database.
func Connect(ctx context.Context, uri, database string, opts Options) (*mongo.Client, *mongo.Database, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, nil, fmt.Errorf("MONGODB_URI is empty")
	}
	if strings.TrimSpace(database) == "" {
		return nil, nil, fmt.Errorf("mongo database name is empty")
	}

	clientOpts := options.Client().ApplyURI(uri)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	telemetry.Info("mongo.connected", map[string]any{"database": database})
	return client, client.Database(database), nil
}

// Disconnect closes the client, bounded by a short timeout.
func Disconnect(client *mongo.Client) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		telemetry.Warn("mongo.disconnect_failed", map[string]any{"error": err.Error()})
	}
}
