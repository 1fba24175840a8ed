// Package erpclient talks to the upstream ERP REST API that owns the
// production BOMs.
package erpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Simplici0/producao/internal/config"
	"github.com/Simplici0/producao/internal/production"
)

var ErrNotFound = errors.New("upstream resource not found")

// APIError is a non-2xx answer from the upstream API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream api error: status=%d", e.Status)
	}
	return fmt.Sprintf("upstream api error: status=%d, message=%s", e.Status, e.Message)
}

// errorBody covers the error payload shapes the ERP answers with.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Message, b.Error, b.Detail} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Client is a resty-backed ERP client.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New builds a client from the upstream configuration.
func New(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	return &Client{http: httpClient, logger: logger}
}

// ListBoms fetches every BOM known upstream. Entries that cannot be decoded
// are logged and left out.
func (c *Client) ListBoms(ctx context.Context) ([]production.BomAPIRecord, error) {
	var raw []json.RawMessage
	if err := c.get(ctx, "/production/bom", &raw); err != nil {
		return nil, fmt.Errorf("list upstream boms: %w", err)
	}

	records := make([]production.BomAPIRecord, 0, len(raw))
	for i, entry := range raw {
		var rec production.BomAPIRecord
		if err := json.Unmarshal(entry, &rec); err != nil {
			c.logger.Warn("skipping undecodable upstream bom", zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// LatestBom fetches the newest BOM version of a product.
func (c *Client) LatestBom(ctx context.Context, productCode string) (production.BomRecord, error) {
	var rec production.BomAPIRecord
	path := "/production/bom/product/" + url.PathEscape(productCode)
	if err := c.get(ctx, path, &rec); err != nil {
		return production.BomRecord{}, fmt.Errorf("latest upstream bom for %s: %w", productCode, err)
	}
	return production.MapBom(rec)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	apiErr := new(errorBody)
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	case resp.IsError():
		return &APIError{Status: resp.StatusCode(), Message: apiErr.text()}
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
