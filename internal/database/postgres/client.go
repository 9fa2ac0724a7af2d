package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/repository"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Client wraps a pgx connection pool with observability and implements repository.Store
type Client struct {
	pool *pgxpool.Pool

	slots     *SlotRepository
	sessions  *SessionRepository
	reminders *ReminderRepository
	reviews   *ReviewRepository
}

var _ repository.Store = (*Client)(nil)

// NewClient creates a PostgreSQL-backed store on top of an existing pool
func NewClient(pool *pgxpool.Pool) *Client {
	c := &Client{pool: pool}
	c.slots = &SlotRepository{c: c}
	c.sessions = &SessionRepository{c: c}
	c.reminders = &ReminderRepository{c: c}
	c.reviews = &ReviewRepository{c: c}

	stat := pool.Stat()
	logger.Info("PostgreSQL client initialized",
		zap.Int32("max_conns", stat.MaxConns()),
		zap.Int32("total_conns", stat.TotalConns()),
	)

	return c
}

func (c *Client) Slots() repository.SlotRepository         { return c.slots }
func (c *Client) Sessions() repository.SessionRepository   { return c.sessions }
func (c *Client) Reminders() repository.ReminderRepository { return c.reminders }
func (c *Client) Reviews() repository.ReviewRepository     { return c.reviews }

// Close closes the connection pool
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
		logger.Info("PostgreSQL connection pool closed")
	}
}

// Pool returns the underlying connection pool for advanced usage
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Ping checks if the database connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Stats returns connection pool statistics
func (c *Client) Stats() *pgxpool.Stat {
	return c.pool.Stat()
}

type txKey struct{}

// querier is the subset of pgx shared by the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// q returns the transaction carried by ctx, or the pool
func (c *Client) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return c.pool
}

// InTx runs fn inside a transaction. Nested calls join the outer transaction.
func (c *Client) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	start := time.Now()
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	c.observe("transaction", start, err)
	return err
}

// WithMentorLock serializes writers of one mentor's timeline with a transaction-scoped
// advisory lock. Unrelated mentors hash to different keys and do not contend.
func (c *Client) WithMentorLock(ctx context.Context, mentorID string, fn func(ctx context.Context) error) error {
	return c.InTx(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := c.q(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", mentorID)
		c.observe("advisoryLock", start, err)
		if err != nil {
			return fmt.Errorf("failed to acquire mentor lock: %w", err)
		}
		return fn(ctx)
	})
}

// observe records metrics for one database operation. pgx.ErrNoRows counts as success.
func (c *Client) observe(operation string, start time.Time, err error) {
	duration := metrics.MeasureDuration(start)
	status := "success"
	switch {
	case err == nil, errors.Is(err, pgx.ErrNoRows), apperrors.Is(err, apperrors.ErrNotFound):
	case apperrors.Is(err, apperrors.ErrConflict), errors.Is(err, repository.ErrStatusChanged):
		status = "conflict"
	default:
		status = "error"
		logger.Error("Database operation failed",
			zap.String("operation", operation),
			zap.Error(err))
	}
	recordMetrics(operation, status, duration)
}

// recordMetrics records database operation metrics
func recordMetrics(operation, status string, duration float64) {
	metrics.DBOperationDuration.WithLabelValues("postgres_"+operation, status).Observe(duration)
	metrics.DBOperationTotal.WithLabelValues("postgres_"+operation, status).Inc()
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// notFound maps pgx.ErrNoRows, and an id that is not a valid UUID, to an
// application not-found error
func notFound(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidTextRepresentation(err) {
		return apperrors.NotFoundError(resource)
	}
	return err
}

// isInvalidTextRepresentation matches 22P02, raised for a malformed uuid literal
func isInvalidTextRepresentation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// qualify prefixes every column of a comma-separated list with alias
func qualify(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
