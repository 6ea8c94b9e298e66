package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"civicimport/internal/logger"
	"civicimport/internal/metrics"
	"civicimport/internal/models"
)

// Upsert errors.
var (
	ErrUpsertStatus = errors.New("unexpected upsert status code")
)

// Ensure SupabaseClient implements Upserter.
var _ Upserter = (*SupabaseClient)(nil)

// SupabaseClient performs batched REST upserts against a PostgREST
// endpoint. The target table must carry a uniqueness constraint on the
// configured conflict columns.
type SupabaseClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	table      string
	onConflict string
	fields     []string
	batchSize  int
	log        *logger.Logger
	met        *metrics.Metrics
}

// NewSupabaseClient creates a REST upsert client.
func NewSupabaseClient(baseURL, apiKey, table, onConflict string, fields []string, batchSize int, log *logger.Logger, met *metrics.Metrics) *SupabaseClient {
	return &SupabaseClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:    baseURL,
		apiKey:     apiKey,
		table:      table,
		onConflict: onConflict,
		fields:     fields,
		batchSize:  batchSize,
		log:        log,
		met:        met,
	}
}

// Upsert sends rows in batches. Any non-2xx response is fatal and aborts
// the remaining batches; there is no partial-success bookkeeping.
func (c *SupabaseClient) Upsert(ctx context.Context, rows []models.CandidateRow) error {
	if len(rows) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?on_conflict=%s", c.baseURL, c.table, url.QueryEscape(c.onConflict))

	for start := 0; start < len(rows); start += c.batchSize {
		end := min(start+c.batchSize, len(rows))

		if err := c.upsertBatch(ctx, endpoint, rows[start:end]); err != nil {
			return err
		}

		c.log.Debug("upserted batch", "rows", end-start, "table", c.table)
	}

	return nil
}

func (c *SupabaseClient) upsertBatch(ctx context.Context, endpoint string, rows []models.CandidateRow) error {
	payload := make([]map[string]any, 0, len(rows))
	for i := range rows {
		payload = append(payload, rowPayload(&rows[i], c.fields))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal upsert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create upsert request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.met != nil {
			c.met.RecordRequest("upsert", 0)
		}

		return fmt.Errorf("upsert request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.met != nil {
		c.met.RecordRequest("upsert", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("%w: %d: %s", ErrUpsertStatus, resp.StatusCode, string(detail))
	}

	return nil
}
