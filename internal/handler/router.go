package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/lotto-system/internal/metrics"
	custommiddleware "github.com/mmeshcher/lotto-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware лотерейного сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(metrics.InstrumentHandler)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/db-check", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/reward", func(r chi.Router) {
		r.Get("/latest", h.LatestPeriod)
		r.Post("/", h.CreatePeriod)
		r.Post("/draw", h.Draw)
		r.Post("/reset", h.Reset)
	})

	r.Route("/lotto", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Post("/", h.CreateTicket)
		r.Post("/random", h.CreateRandomTickets)
		r.Get("/randomOne", h.RandomTicket)
	})
	r.Post("/search/lotto", h.SearchTickets)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.Purchase)
		r.Get("/check/{order_id}", h.CheckOrder)
		r.Post("/redeem", h.Redeem)
	})

	r.Post("/deposit/{id}", h.Deposit)
	r.Post("/withdraw/{id}", h.Withdraw)
	r.Get("/mylotto/{id}", h.MyOrders)

	r.Post("/register", h.Register)
	r.Delete("/users/{id}", h.DeleteUser)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
