package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skalibog/mprofile/pkg/logger"
	"go.uber.org/zap"
)

const namespace = "mprofile"

var (
	// CandlesFetched количество загруженных свечей
	CandlesFetched = NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candles_fetched_total",
		Help:      "Candles fetched per symbol and interval.",
	}, []string{"symbol", "interval"})

	// Runs запуски анализа по виду и результату
	Runs = NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_runs_total",
		Help:      "Analysis runs by kind and status.",
	}, []string{"kind", "status"})

	// Duration длительность анализа
	Duration = NewHistVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Analysis duration by kind.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"kind"})

	// NetRotation суммарная ротация последнего анализа
	NetRotation = NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "net_rotation",
		Help:      "Total net rotation of the latest analysis.",
	}, []string{"symbol", "interval"})

	// POCScore оценка движения POC последнего анализа
	POCScore = NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "poc_score",
		Help:      "POC movement score of the latest analysis.",
	}, []string{"symbol", "mode"})
)

// Observe фиксирует результат и длительность одного запуска
func Observe(kind string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Runs.WithLabelValues(kind, status).Inc()
	Duration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// Server отдает метрики Prometheus по HTTP
type Server struct {
	srv *http.Server
}

// NewServer создает сервер метрик на порту port
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start запускает сервер в отдельной горутине
func (s *Server) Start() {
	go func() {
		logger.Info("Сервер метрик запущен", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ошибка сервера метрик", zap.Error(err))
		}
	}()
}

// Stop останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// NewCounterVec создает и регистрирует вектор счетчиков
func NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	prometheus.MustRegister(c)
	return c
}

// NewGaugeVec создает и регистрирует вектор gauge-метрик
func NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	prometheus.MustRegister(g)
	return g
}

// NewHistVec создает и регистрирует вектор гистограмм
func NewHistVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	prometheus.MustRegister(h)
	return h
}
