package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domrepo "github.com/vpnsgde/gold-quant/internal/domain/repository"
	"github.com/vpnsgde/gold-quant/internal/services/selector"
	pkgkafka "github.com/vpnsgde/gold-quant/pkg/kafka"
	"github.com/vpnsgde/gold-quant/pkg/logger"
)

var validate = validator.New()

// KafkaForecastHandler runs forecast jobs from the requests topic. Results
// leave through the use case's publisher.
type KafkaForecastHandler struct {
	topic   string
	uc      *ForecastUseCase
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewKafkaForecastHandler(topic string, uc *ForecastUseCase, metrics domrepo.Metrics, log *logger.Logger) *KafkaForecastHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaForecastHandler{topic: topic, uc: uc, metrics: metrics, log: log}
}

func (h *KafkaForecastHandler) Topic() string { return h.topic }

// Handle expects a JSON ForecastRequest. Malformed jobs and input errors are
// permanent; everything else may be retried by the consumer.
func (h *KafkaForecastHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ForecastRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.recordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode forecast request: %w", err))
	}
	if err := defaults.Set(&req); err != nil {
		return pkgkafka.Permanent(err)
	}
	if err := validate.StructCtx(ctx, &req); err != nil {
		h.recordError("consumer_validate")
		return pkgkafka.Permanent(fmt.Errorf("%w: %v", models.ErrInput, err))
	}

	t, err := h.uc.Run(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrInput) || errors.Is(err, selector.ErrNoViableModel) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.log.Debug("forecast job done",
		logger.String("symbol", t.Symbol),
		logger.String("method", string(t.Meta.Method)),
	)
	return nil
}

func (h *KafkaForecastHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaForecastHandler)(nil)
