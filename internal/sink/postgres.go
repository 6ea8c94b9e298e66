package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicimport/internal/logger"
	"civicimport/internal/models"
)

// Ensure PostgresClient implements Upserter.
var _ Upserter = (*PostgresClient)(nil)

// PostgresClient upserts rows over a direct database connection, for
// deployments that bypass the REST layer. The statement is built once from
// the column allowlist and the conflict columns.
type PostgresClient struct {
	pool      *pgxpool.Pool
	fields    []string
	batchSize int
	query     string
	log       *logger.Logger
}

// NewPostgresClient connects to dsn and prepares the upsert statement.
func NewPostgresClient(ctx context.Context, dsn, table, onConflict string, fields []string, batchSize int, log *logger.Logger) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &PostgresClient{
		pool:      pool,
		fields:    fields,
		batchSize: batchSize,
		query:     buildUpsertQuery(table, onConflict, fields),
		log:       log,
	}, nil
}

// Close releases the connection pool.
func (c *PostgresClient) Close() {
	c.pool.Close()
}

// Upsert sends rows in batches. A failed batch aborts the remaining ones.
func (c *PostgresClient) Upsert(ctx context.Context, rows []models.CandidateRow) error {
	if len(rows) == 0 {
		return nil
	}

	for start := 0; start < len(rows); start += c.batchSize {
		end := min(start+c.batchSize, len(rows))

		b := &pgx.Batch{}
		for i := start; i < end; i++ {
			b.Queue(c.query, rowArgs(&rows[i], c.fields)...)
		}

		br := c.pool.SendBatch(ctx, b)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()

				return fmt.Errorf("failed to upsert row %s: %w", rows[i].ExternalID, err)
			}
		}

		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}

		c.log.Debug("upserted batch", "rows", end-start)
	}

	return nil
}

// buildUpsertQuery renders INSERT ... ON CONFLICT DO UPDATE over the
// allowlisted columns. Conflict columns are excluded from the update set;
// they identify the row and never change.
func buildUpsertQuery(table, onConflict string, fields []string) string {
	conflictCols := make(map[string]bool)
	for _, col := range strings.Split(onConflict, ",") {
		conflictCols[strings.TrimSpace(col)] = true
	}

	placeholders := make([]string, len(fields))
	for i := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var updates []string
	for _, col := range fields {
		if !conflictCols[col] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		onConflict,
		strings.Join(updates, ", "),
	)
}

// rowArgs mirrors rowPayload for positional parameters.
func rowArgs(r *models.CandidateRow, fields []string) []any {
	args := make([]any, len(fields))

	for i, name := range fields {
		if v := r.Field(name); v != "" {
			args[i] = v
		}
	}

	return args
}
