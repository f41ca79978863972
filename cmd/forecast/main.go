// Command forecast runs a single forecast over a CSV price file and writes the
// step-indexed table as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	domsvc "github.com/vpnsgde/gold-quant/internal/domain/service"
	"github.com/vpnsgde/gold-quant/internal/repository"
	"github.com/vpnsgde/gold-quant/internal/services/analytics"
	"github.com/vpnsgde/gold-quant/internal/services/output"
	"github.com/vpnsgde/gold-quant/internal/services/strategy"
	"github.com/vpnsgde/gold-quant/internal/usecase"
	"github.com/vpnsgde/gold-quant/pkg/config"
	"github.com/vpnsgde/gold-quant/pkg/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "forecast:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config file path")
	input := fs.String("input", "", "price CSV (overrides forecast.input_csv)")
	out := fs.String("output", "", "output CSV path, stdout when empty")
	method := fs.String("method", "", "arima_garch, gbm or mc_dropout")
	steps := fs.Int("steps", 0, "forecast horizon")
	paths := fs.Int("paths", 0, "monte carlo paths")
	seed := fs.Uint64("seed", 0, "random seed, 0 for entropy")
	logLevel := fs.String("log-level", "", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *input != "" {
		cfg.Forecast.InputCSV = *input
	}
	if *method != "" {
		cfg.Forecast.Method = *method
	}
	if *steps > 0 {
		cfg.Forecast.ForecastSteps = *steps
	}
	if *paths > 0 {
		cfg.Forecast.MonteCarloPaths = *paths
	}
	if *seed != 0 {
		cfg.Forecast.Seed = *seed
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	// CSV goes to stdout, so the file sink is written below instead.
	cfg.Forecast.OutputCSV = ""
	if cfg.Forecast.InputCSV == "" {
		return fmt.Errorf("-input is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs never share stdout with the table.
	logOut := cfg.Log.Output
	if logOut == "stdout" {
		logOut = "stderr"
	}
	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: logOut})
	if err != nil {
		return err
	}

	var pred domsvc.Predictor
	if cfg.Forecast.Predictor == config.PredictorRemote {
		pred = analytics.NewHTTPPredictor(cfg)
	}
	uc := usecase.NewForecastUseCase(
		repository.NewCSVPriceSource(cfg.Forecast.InputCSV),
		cfg.Forecast,
		strategy.Build(cfg.Forecast, pred, log, nil),
		usecase.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	table, err := uc.Run(ctx, usecase.RequestFromConfig(cfg.Forecast))
	if err != nil {
		return err
	}
	if *out != "" {
		return usecase.WriteCSVFile(*out, table)
	}
	return output.WriteCSV(stdout, table)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}
