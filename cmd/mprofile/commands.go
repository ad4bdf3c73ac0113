package main

import (
	"context"
	"fmt"
	"time"

	"github.com/skalibog/mprofile/internal/analysis/aggregator"
	"github.com/skalibog/mprofile/internal/analysis/control"
	"github.com/skalibog/mprofile/internal/analysis/daily"
	"github.com/skalibog/mprofile/internal/metrics"
	"github.com/skalibog/mprofile/internal/scheduler"
	"github.com/skalibog/mprofile/internal/storage"
	"github.com/skalibog/mprofile/internal/ui"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// analyze полный анализ выбранного символа. Для команды poc период берется из poc.days.
func analyze(ctx context.Context, poc bool, mode models.POCMode) (*models.AnalysisResult, error) {
	a, err := setup(false)
	if err != nil {
		return nil, err
	}
	defer a.close()

	req := aggregator.Request{Symbol: a.targetSymbol(), POCMode: mode}
	if poc && days == 0 {
		req.Days = a.cfg.POC.Days
	}
	return aggregator.NewAnalyzer(a.cfg, a.source, a.store).Analyze(ctx, req)
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Построить TPO профиль по сессиям",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := analyze(cmd.Context(), false, "")
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newRotationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotation",
		Short: "Фактор ротации по сессиям и контроль",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := analyze(cmd.Context(), false, "")
			if err != nil {
				return err
			}
			printRotation(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newPOCCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "poc",
		Short: "Движение POC по сессиям или внутри текущей сессии",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch models.POCMode(mode) {
			case "", models.POCModeSessions, models.POCModeToday:
			default:
				return fmt.Errorf("неизвестный режим %q (days | today)", mode)
			}
			res, err := analyze(cmd.Context(), true, models.POCMode(mode))
			if err != nil {
				return err
			}
			printPOC(cmd.OutOrStdout(), res.Symbol, res.POC)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "режим: days (по сессиям) или today (по брекетам текущей сессии)")
	return cmd
}

func newControlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "control",
		Short: "Кто контролирует рынок на нескольких таймфреймах и периодах",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.close()

			sym := a.targetSymbol()
			results, err := control.NewScanner(a.cfg, a.source).Scan(cmd.Context(), sym)
			if err != nil {
				return err
			}
			printControl(cmd.OutOrStdout(), sym, control.Summarize(results))
			return nil
		},
	}
}

func newDailyCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Дневной анализ: сегодня, вчера и позавчера",
		RunE: func(cmd *cobra.Command, args []string) error {
			var target time.Time
			if date != "" {
				t, err := time.Parse(models.DateLayout, date)
				if err != nil {
					return fmt.Errorf("некорректная дата %q: %w", date, err)
				}
				target = t
			}

			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := daily.NewAnalyzer(a.cfg, a.source).Analyze(cmd.Context(), a.targetSymbol(), target)
			if err != nil {
				return err
			}
			printDaily(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "дата анализа YYYY-MM-DD (по умолчанию сегодня)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Сохраненные результаты анализа",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.close()

			records, err := aggregator.NewAnalyzer(a.cfg, a.source, a.store).History(cmd.Context(), storage.HistoryFilter{
				Symbol:   symbol,
				Interval: interval,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "максимум записей")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Периодический анализ всех символов в терминальном интерфейсе",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			symbols := a.cfg.Trading.Symbols
			if offline {
				stored, err := a.store.GetSymbols(ctx)
				if err != nil {
					return err
				}
				if len(stored) > 0 {
					symbols = stored
				}
			}

			analyzer := aggregator.NewAnalyzer(a.cfg, a.source, a.store)
			userInterface := ui.NewTermUI(ctx, a.cfg.UI, logger.Options{Dir: a.cfg.Log.Dir}.JSONLogPath())

			go func() {
				ticker := time.NewTicker(time.Duration(a.cfg.UI.IntervalSeconds) * time.Second)
				defer ticker.Stop()

				for {
					results := analyzer.AnalyzeSymbols(ctx, symbols)
					if len(results) > 0 {
						userInterface.UpdateResults(results)
					}

					select {
					case <-ticker.C:
					case <-ctx.Done():
						return
					}
				}
			}()

			return userInterface.Start()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Анализ по расписанию с сохранением результатов и метриками",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			sched := scheduler.NewScheduler(ctx, a.cfg.Trading.Symbols,
				aggregator.NewAnalyzer(a.cfg, a.source, a.store),
				daily.NewAnalyzer(a.cfg, a.source),
				control.NewScanner(a.cfg, a.source))
			if err := sched.RegisterAll(a.cfg.Schedule.AnalysisCron, a.cfg.Schedule.DailyCron); err != nil {
				return err
			}

			var srv *metrics.Server
			if a.cfg.Metrics.Enabled {
				srv = metrics.NewServer(a.cfg.Metrics.Port)
				srv.Start()
			}

			sched.Start()
			if a.cfg.Schedule.RunOnStart {
				go func() {
					sched.RunAnalysisNow()
					sched.RunDailyNow()
				}()
			}

			<-ctx.Done()
			logger.Info("Завершение работы...")
			sched.Stop()

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Stop(shutdownCtx); err != nil {
					logger.Warn("Ошибка остановки сервера метрик", zap.Error(err))
				}
			}
			return nil
		},
	}
}
