// Package backend is the client for the hosted relational data API. It owns
// no state of its own: callers (the session store, the identity resolver)
// treat it as the remote source of truth. Row writes publish change events so
// other devices' listeners can react.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/models"
)

// ErrNotFound is the normalized "no rows found" condition. Callers must be
// able to distinguish it from every other failure class.
var ErrNotFound = errors.New("backend: not found")

// Publisher emits change events after committed writes. A nil Publisher is
// valid and disables event emission.
type Publisher interface {
	PublishChange(ctx context.Context, ev models.ChangeEvent) error
}

// Client wraps a pgx connection pool plus the change-event publisher.
type Client struct {
	pool *pgxpool.Pool
	pub  Publisher
	log  *logrus.Logger
}

// Connect builds the pool from DATABASE_URL, or from POSTGRES_USER /
// POSTGRES_PASSWORD / PG_HOST / PG_PORT / PG_DATABASE when unset.
func Connect(ctx context.Context, pub Publisher, log *logrus.Logger) (*Client, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("PG_HOST"),
			os.Getenv("PG_PORT"),
			os.Getenv("PG_DATABASE"),
		)
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return &Client{pool: pool, pub: pub, log: log}, nil
}

// NewClient wires an existing pool; used by tests and by callers that manage
// the pool themselves.
func NewClient(pool *pgxpool.Pool, pub Publisher, log *logrus.Logger) *Client {
	return &Client{pool: pool, pub: pub, log: log}
}

// Close releases the pool.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// notFound maps pgx.ErrNoRows onto the normalized sentinel.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// publish emits a change event. Publish failures never fail the write that
// triggered them; subscribers self-correct on their next full re-fetch.
func (c *Client) publish(ctx context.Context, ev models.ChangeEvent) {
	if c.pub == nil {
		return
	}
	if err := c.pub.PublishChange(ctx, ev); err != nil && c.log != nil {
		c.log.WithFields(logrus.Fields{
			"table": ev.Table,
			"op":    ev.Op,
			"group": ev.GroupID,
		}).Warnf("change event publish failed: %v", err)
	}
}
