package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrBadStatus is returned when the oracle endpoint answers with a
// non-200 status.
var ErrBadStatus = errors.New("oracle: unexpected response status")

// HTTPSource fetches readings from a JSON ticker endpoint of the form
// GET {endpoint}?symbol={symbol} returning:
//
//	{"symbol": "GASPRICE", "price": "48.73", "time": 1735689600000}
//
// "time" is optional epoch milliseconds; when absent the reading is
// stamped with the local receive time.
type HTTPSource struct {
	name     string
	endpoint string
	client   *http.Client
}

// NewHTTPSource creates a source for one oracle endpoint. A zero timeout
// defaults to 10s.
func NewHTTPSource(name, endpoint string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the source's configured name.
func (s *HTTPSource) Name() string { return s.name }

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	TimeMS int64  `json:"time,omitempty"`
}

// Fetch requests the raw price for a symbol. The returned price is in the
// oracle's native fixed-point units; the resolver applies scale/offset.
func (s *HTTPSource) Fetch(ctx context.Context, symbol string) (Reading, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return Reading{}, fmt.Errorf("oracle: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("symbol", symbol)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Reading{}, fmt.Errorf("oracle: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("oracle: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("%w: %d from %s", ErrBadStatus, resp.StatusCode, s.name)
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return Reading{}, fmt.Errorf("oracle: decode response: %w", err)
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return Reading{}, fmt.Errorf("oracle: parse price %q: %w", ticker.Price, err)
	}

	observed := time.Now().UTC()
	if ticker.TimeMS > 0 {
		observed = time.UnixMilli(ticker.TimeMS).UTC()
	}

	return Reading{Price: price, ObservedAt: observed}, nil
}
