package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/domain/order"
)

// FetchService pulls randomly generated orders from the ordering
// service's HTTP endpoint. A failed fetch yields no order; the caller
// decides whether to retry on the next tick.
type FetchService struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewFetchService creates a fetcher against the given order endpoint.
func NewFetchService(url string, logger *zap.Logger) *FetchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchService{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// FetchOrder requests one order from the upstream service.
func (f *FetchService) FetchOrder(ctx context.Context) (*order.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("order fetch failed", zap.String("url", f.url), zap.Error(err))
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("order fetch rejected", zap.String("url", f.url), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("fetch order: unexpected status %d", resp.StatusCode)
	}

	var o order.Order
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		f.logger.Warn("order decode failed", zap.String("url", f.url), zap.Error(err))
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}
