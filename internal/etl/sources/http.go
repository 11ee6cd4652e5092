package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"banks/internal/etl"
)

// ── HTTP fetch ──────────────────────────────────────────────
// One GET per call, no retries. Every failure is an etl.ErrNetwork.

// DefaultTimeout bounds a single fetch when the caller gives no client.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps the downloaded page. Larger pages fail instead of being
// parsed truncated.
var maxBodySize int64 = 32 << 20

func defaultClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// fetchHTTP downloads url and returns the response body.
// headersJSON is an optional JSON object of extra request headers.
func fetchHTTP(ctx context.Context, client *http.Client, url, headersJSON string) ([]byte, error) {
	if url == "" {
		return nil, etl.NewError(etl.StageExtract, etl.ErrNetwork, nil, "url is required")
	}
	if client == nil {
		client = defaultClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, etl.NewError(etl.StageExtract, etl.ErrNetwork, err, "create request")
	}
	req.Header.Set("User-Agent", "banks-etl/1.0")

	if headersJSON != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, etl.NewError(etl.StageExtract, etl.ErrNetwork, err, "invalid request headers")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, etl.NewError(etl.StageExtract, etl.ErrNetwork, err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, etl.NewError(etl.StageExtract, etl.ErrNetwork,
			fmt.Errorf("http %d: %s", resp.StatusCode, string(snippet)), "failed to fetch %s", url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, etl.NewError(etl.StageExtract, etl.ErrNetwork, err, "read body")
	}
	if int64(len(data)) > maxBodySize {
		return nil, etl.NewError(etl.StageExtract, etl.ErrNetwork, nil,
			"page %s is larger than %d bytes", url, maxBodySize)
	}
	return data, nil
}
