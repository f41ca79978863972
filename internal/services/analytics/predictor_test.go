package analytics

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
)

func TestHTTPPredictorPostsWindow(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/predict" || r.Method != http.MethodPost {
            t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
        }
        var req predictReq
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            t.Errorf("decode: %v", err)
        }
        if !req.Stochastic || len(req.Window) != 3 {
            t.Errorf("unexpected payload %+v", req)
        }
        _ = json.NewEncoder(w).Encode(predictResp{Value: req.Window[2] + 0.5, Model: "lstm"})
    }))
    defer srv.Close()

    p := &HTTPPredictor{base: newHTTPServiceBase(srv.URL, time.Second), lookback: 3}
    v, err := p.PredictStochastic(context.Background(), []float64{0.1, 0.2, 0.3})
    require.NoError(t, err)
    require.InDelta(t, 0.8, v, 1e-12)
    require.Equal(t, 3, p.WindowLength())
}

func TestHTTPPredictorRetries(t *testing.T) {
    var calls atomic.Int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if calls.Add(1) == 1 {
            w.WriteHeader(http.StatusServiceUnavailable)
            return
        }
        _ = json.NewEncoder(w).Encode(predictResp{Value: 1})
    }))
    defer srv.Close()

    p := &HTTPPredictor{base: newHTTPServiceBase(srv.URL, time.Second), lookback: 1, retries: 3}
    v, err := p.PredictStochastic(context.Background(), []float64{0})
    require.NoError(t, err)
    require.Equal(t, 1.0, v)
    require.Equal(t, int32(2), calls.Load())
}

func TestHTTPPredictorDoesNotRetryClientErrors(t *testing.T) {
    var calls atomic.Int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls.Add(1)
        http.Error(w, "window length mismatch", http.StatusBadRequest)
    }))
    defer srv.Close()

    p := &HTTPPredictor{base: newHTTPServiceBase(srv.URL, time.Second), lookback: 1, retries: 3}
    _, err := p.PredictStochastic(context.Background(), []float64{0})
    require.Error(t, err)
    require.Equal(t, int32(1), calls.Load())
}

func TestHTTPPredictorNotConfigured(t *testing.T) {
    p := &HTTPPredictor{base: newHTTPServiceBase("", time.Second)}
    _, err := p.PredictStochastic(context.Background(), []float64{0})
    require.Error(t, err)
}

func TestHTTPPredictorHealth(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/health" || r.Method != http.MethodGet {
            w.WriteHeader(http.StatusNotFound)
            return
        }
        w.WriteHeader(http.StatusOK)
    }))
    defer srv.Close()

    p := &HTTPPredictor{base: newHTTPServiceBase(srv.URL+"/", time.Second)}
    require.NoError(t, p.Health(context.Background()))

    srv.Close()
    require.Error(t, p.Health(context.Background()))
}
