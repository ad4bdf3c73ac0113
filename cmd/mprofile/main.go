package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/internal/exchange"
	"github.com/skalibog/mprofile/internal/storage"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	offline    bool
	symbol     string
	interval   string
	bracket    string
	days       int
)

// app общие зависимости команд
type app struct {
	cfg    *config.Config
	store  storage.Storage
	source exchange.CandleSource
}

var rootCmd = &cobra.Command{
	Use:           "mprofile",
	Short:         "TPO / Market Profile: профиль, ротация, контроль рынка и движение POC",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "путь к файлу конфигурации")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "читать свечи из хранилища вместо биржи")
	rootCmd.PersistentFlags().StringVarP(&symbol, "symbol", "s", "", "торговая пара (по умолчанию первая из конфигурации)")
	rootCmd.PersistentFlags().StringVarP(&interval, "interval", "i", "", "интервал свечей (30m, 1h, 4h)")
	rootCmd.PersistentFlags().StringVarP(&bracket, "bracket", "b", "", "длина брекета TPO (по умолчанию равна интервалу)")
	rootCmd.PersistentFlags().IntVarP(&days, "days", "d", 0, "количество дней истории")

	rootCmd.AddCommand(
		newProfileCmd(),
		newRotationCmd(),
		newControlCmd(),
		newDailyCmd(),
		newPOCCmd(),
		newHistoryCmd(),
		newWatchCmd(),
		newServeCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

// setup загружает конфигурацию, логгер, хранилище и источник свечей.
// В режиме watch лог не пишется в консоль, а JSON лог очищается для панели логов.
func setup(watch bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if bracket == "" && interval != "" {
		cfg.Trading.BracketPeriod = interval
	}
	if interval != "" {
		cfg.Trading.Interval = interval
	}
	if bracket != "" {
		cfg.Trading.BracketPeriod = bracket
	}
	if days > 0 {
		cfg.Trading.Days = days
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Options{
		Dir:      cfg.Log.Dir,
		Level:    cfg.Log.Level,
		Stdout:   !watch && cfg.Log.Stdout,
		Truncate: watch,
	}); err != nil {
		return nil, fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	logger.Info("Конфигурация загружена", zap.String("path", configPath), zap.Bool("offline", offline))

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}

	a := &app{cfg: cfg, store: store}
	if offline {
		if cfg.Storage.Type == "none" {
			store.Close()
			return nil, fmt.Errorf("для --offline нужно хранилище (storage.type = sqlite или influxdb)")
		}
		a.source = storage.CandleReader{Store: store}
		return a, nil
	}

	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ошибка инициализации клиента биржи: %w", err)
	}
	a.source = client
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("Ошибка закрытия хранилища", zap.Error(err))
	}
}

// targetSymbol символ из флага или первый из конфигурации
func (a *app) targetSymbol() string {
	if symbol != "" {
		return symbol
	}
	return a.cfg.Trading.Symbols[0]
}
