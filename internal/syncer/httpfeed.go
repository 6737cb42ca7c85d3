package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPFeed fetches channel stock counts from an external inventory endpoint.
// The endpoint is expected to answer
// GET {base}/stock?product_id=X&channel=Y with {"quantity": N}.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFeed(baseURL string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFeed) ChannelQuantity(ctx context.Context, productID, channel string) (int, error) {
	q := url.Values{}
	q.Set("product_id", productID)
	q.Set("channel", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/stock?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stock feed returned status %d", resp.StatusCode)
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Quantity, nil
}
