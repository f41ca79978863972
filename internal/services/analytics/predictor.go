package analytics

import (
    "context"
    "fmt"

    domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
    "github.com/vpnsgde/gold-quant/pkg/config"
)

// HTTPPredictor calls a trained sequence model served by the Python model
// service. The service keeps dropout active when stochastic is set.
type HTTPPredictor struct {
    base     *HTTPServiceBase
    lookback int
    retries  int
}

func NewHTTPPredictor(cfg *config.Config) *HTTPPredictor {
    return &HTTPPredictor{
        base:     NewHTTPServiceBase(cfg),
        lookback: cfg.Forecast.RollingWindowLength,
        retries:  cfg.ModelService.Retries,
    }
}

type predictReq struct {
    Window     []float64 `json:"window"`
    Stochastic bool      `json:"stochastic"`
}

type predictResp struct {
    Value float64 `json:"value"`
    Model string  `json:"model"`
}

func (p *HTTPPredictor) WindowLength() int { return p.lookback }

func (p *HTTPPredictor) PredictStochastic(ctx context.Context, window []float64) (float64, error) {
    var pr predictResp
    err := p.base.PostJSONWithRetry(ctx, "/predict", predictReq{Window: window, Stochastic: true}, &pr, p.retries)
    if err != nil {
        return 0, fmt.Errorf("post predict: %w", err)
    }
    return pr.Value, nil
}

var _ domsvc.Predictor = (*HTTPPredictor)(nil)

// Health checks the model service liveness endpoint.
func (p *HTTPPredictor) Health(ctx context.Context) error { return p.base.Health(ctx) }
