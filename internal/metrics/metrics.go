// Package metrics содержит Prometheus-метрики HTTP-слоя и событий лотереи.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lotto"

var (
	// Registry содержит коллекторы сервиса.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	ticketsMinted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "minted_total",
			Help:      "Total number of lotto tickets created.",
		},
	)

	ticketsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "sold_total",
			Help:      "Total number of lotto tickets sold.",
		},
	)

	randomCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "random_collisions_total",
			Help:      "Random numbers rejected because they already existed in the period.",
		},
	)

	draws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draws",
			Name:      "completed_total",
			Help:      "Total number of completed draws.",
		},
		[]string{"mode"},
	)

	periodsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "periods",
			Name:      "created_total",
			Help:      "Total number of reward periods created.",
		},
	)

	prizesPaid = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prizes",
			Name:      "paid_amount_total",
			Help:      "Prize amount credited to wallets.",
		},
		[]string{"tier"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ticketsMinted,
		ticketsSold,
		randomCollisions,
		draws,
		periodsCreated,
		prizesPaid,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler возвращает HTTP-обработчик, отдающий метрики.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler собирает метрики запросов. Метка route берётся из шаблона
// маршрута chi, чтобы идентификаторы в пути не раздували число серий.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// TicketsMinted учитывает созданные билеты.
func TicketsMinted(n int) {
	ticketsMinted.Add(float64(n))
}

// TicketSold учитывает продажу билета.
func TicketSold() {
	ticketsSold.Inc()
}

// RandomCollisions учитывает отклонённые случайные номера.
func RandomCollisions(n int) {
	randomCollisions.Add(float64(n))
}

// DrawCompleted учитывает завершённый розыгрыш.
func DrawCompleted(mode string) {
	draws.WithLabelValues(mode).Inc()
}

// PeriodCreated учитывает новый тираж.
func PeriodCreated() {
	periodsCreated.Inc()
}

// PrizePaid учитывает выплату приза.
func PrizePaid(tier int, amount float64) {
	prizesPaid.WithLabelValues(strconv.Itoa(tier)).Add(amount)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
