// FILE: src/internal/syncer/client.go
package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"logpulse/src/internal/auth"
	"logpulse/src/internal/config"
	"logpulse/src/internal/store"
	"logpulse/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// ErrAuth is returned when the server rejects the connection key.
// Authentication failures are fatal for the whole sync run: retrying
// a revoked key only burns the retry budget.
var ErrAuth = errors.New("server rejected connection key")

// wireRecord is one record on the ingestion wire. Timestamps travel as
// UTC RFC3339; the dedup key lets the server drop re-sent batches.
type wireRecord struct {
	Source    string          `json:"source"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	LogType   string          `json:"log_type"`
	ServerID  string          `json:"server_id"`
	DedupKey  string          `json:"dedup_key"`
}

// Client posts record batches to the ingestion endpoint.
type Client struct {
	config *config.SyncConfig
	creds  *auth.Credentials
	client *fasthttp.Client
	logger *log.Logger
}

// NewClient builds the HTTP client for the credentials' endpoint.
func NewClient(cfg *config.SyncConfig, creds *auth.Credentials, logger *log.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Client{
		config: cfg,
		creds:  creds,
		client: &fasthttp.Client{
			MaxConnsPerHost:     4,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
		logger: logger,
	}
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.creds.EndpointURL, "/") + "/logs"
}

// SendBatch delivers one batch, retrying transient failures with a
// capped exponential backoff. The batch succeeds or fails atomically:
// only a 2xx response marks it delivered. 401 and 403 map to ErrAuth
// without retry; other 4xx responses are rejected without retry too,
// the payload will not get better by resending it.
func (c *Client) SendBatch(recs []*store.LogRecord) error {
	if len(recs) == 0 {
		return nil
	}

	body, err := c.marshalBatch(recs)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	timeout := time.Duration(c.config.TimeoutSeconds) * time.Second
	retryDelay := time.Duration(c.config.RetryDelayMS) * time.Millisecond
	var lastErr error

	for attempt := int64(0); attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
			newDelay := time.Duration(float64(retryDelay) * c.config.RetryBackoff)
			if newDelay > timeout || newDelay < retryDelay {
				retryDelay = timeout
			} else {
				retryDelay = newDelay
			}
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI(c.endpoint())
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.Header.Set("Authorization", "Bearer "+c.creds.ConnectionKey)
		req.Header.Set("User-Agent", fmt.Sprintf("LogPulse/%s", version.Short()))
		req.SetBody(body)

		err := c.client.DoTimeout(req, resp, timeout)

		statusCode := resp.StatusCode()
		var responseBody []byte
		if len(resp.Body()) > 0 {
			responseBody = make([]byte, len(resp.Body()))
			copy(responseBody, resp.Body())
		}

		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.logger.Warn("msg", "Sync request failed",
				"component", "sync_client",
				"attempt", attempt+1,
				"max_retries", c.config.MaxRetries,
				"error", err)
			continue
		}

		if statusCode >= 200 && statusCode < 300 {
			c.logger.Debug("msg", "Batch delivered",
				"component", "sync_client",
				"batch_size", len(recs),
				"status_code", statusCode,
				"attempt", attempt+1)
			return nil
		}

		if statusCode == fasthttp.StatusUnauthorized || statusCode == fasthttp.StatusForbidden {
			c.logger.Error("msg", "Connection key rejected",
				"component", "sync_client",
				"status_code", statusCode,
				"response", string(responseBody))
			return fmt.Errorf("%w: status %d", ErrAuth, statusCode)
		}

		lastErr = fmt.Errorf("server returned status %d: %s", statusCode, responseBody)

		if statusCode >= 400 && statusCode < 500 {
			c.logger.Error("msg", "Batch rejected by server",
				"component", "sync_client",
				"status_code", statusCode,
				"response", string(responseBody),
				"batch_size", len(recs))
			return lastErr
		}

		c.logger.Warn("msg", "Server returned error status",
			"component", "sync_client",
			"attempt", attempt+1,
			"status_code", statusCode)
	}

	return fmt.Errorf("batch not delivered after %d retries: %w", c.config.MaxRetries, lastErr)
}

func (c *Client) marshalBatch(recs []*store.LogRecord) ([]byte, error) {
	wire := make([]wireRecord, 0, len(recs))
	for _, rec := range recs {
		meta := json.RawMessage(rec.Meta)
		if !json.Valid(meta) {
			meta = json.RawMessage("{}")
		}
		wire = append(wire, wireRecord{
			Source:    rec.Source,
			Level:     rec.Level,
			Message:   rec.Message,
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
			Meta:      meta,
			LogType:   rec.Category,
			ServerID:  c.creds.ServerID,
			DedupKey:  rec.DedupKey,
		})
	}
	return json.Marshal(wire)
}
