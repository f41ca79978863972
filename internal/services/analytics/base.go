package analytics

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/vpnsgde/gold-quant/pkg/config"
    xhttp "github.com/vpnsgde/gold-quant/pkg/http"
)

const maxRetryBackoff = time.Second

// HTTPServiceBase is the JSON transport shared by model service clients.
type HTTPServiceBase struct {
    baseURL string
    client  *xhttp.Client
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL from config.
func NewHTTPServiceBase(cfg *config.Config) *HTTPServiceBase {
    return newHTTPServiceBase(cfg.ModelService.URL, cfg.ModelService.Timeout)
}

func newHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
    if timeout <= 0 {
        timeout = 3 * time.Second
    }
    return &HTTPServiceBase{
        baseURL: strings.TrimRight(baseURL, "/"),
        client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
    }
}

func (b *HTTPServiceBase) do(ctx context.Context, method, path string, payload, dest interface{}) error {
    if b.client == nil || b.baseURL == "" {
        return fmt.Errorf("model service url not configured")
    }
    opts := &xhttp.RequestOptions{Method: method, URL: b.baseURL + path}
    if payload != nil {
        opts.Headers = map[string]string{"Content-Type": "application/json"}
        opts.Body = payload
    }
    if err := b.client.SendAndParse(ctx, opts, dest); err != nil {
        return fmt.Errorf("%s %s: %w", method, path, err)
    }
    return nil
}

// PostJSON posts payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
    return b.do(ctx, xhttp.MethodPost, path, payload, dest)
}

// PostJSONWithRetry posts JSON up to attempts times. Only transport errors,
// 5xx and 429 are retried, with a linear backoff capped at one second.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
    if attempts <= 1 {
        return b.PostJSON(ctx, path, payload, dest)
    }
    var err error
    for i := 1; i <= attempts; i++ {
        err = b.PostJSON(ctx, path, payload, dest)
        if err == nil || !xhttp.IsTemporary(err) || i == attempts {
            return err
        }
        select {
        case <-time.After(min(time.Duration(i)*50*time.Millisecond, maxRetryBackoff)):
        case <-ctx.Done():
            return ctx.Err()
        }
    }
    return err
}

// Health issues GET /health and succeeds on any 2xx.
func (b *HTTPServiceBase) Health(ctx context.Context) error {
    return b.do(ctx, xhttp.MethodGet, "/health", nil, nil)
}
