package models

// Requests for forecast endpoints and jobs. Defined in domain for reuse by
// the HTTP handler and the Kafka job handler.

type ForecastRequest struct {
	Symbol     string  `query:"symbol" json:"symbol" validate:"required"`
	Method     string  `query:"method" json:"method" default:"arima_garch" validate:"oneof=arima_garch gbm mc_dropout"`
	Steps      int     `query:"steps" json:"steps" default:"50" validate:"gte=1,lte=1000"`
	N          int     `query:"n" json:"n" validate:"omitempty,gte=10,lte=300000"` // bars loaded; zero loads all
	TF         string  `query:"tf" json:"tf" default:"5m" validate:"oneof=1s 1m 5m"`
	Confidence float64 `query:"conf" json:"confidence_level" default:"0.95" validate:"gt=0,lt=1"`
	Paths      int     `query:"paths" json:"paths" validate:"gte=0,lte=100000"`
	History    int     `query:"history" json:"history" default:"200" validate:"gte=0,lte=5000"`
}
