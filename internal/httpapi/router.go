package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hana270/PFE-PROJET/internal/metrics"
)

// NewRouter wires every route. The cart routes work for both anonymous
// shoppers (X-Session-ID) and authenticated accounts; migrate and the
// order routes require a token.
func NewRouter(carts CartAPI, payments PaymentAPI, orders OrderAPI, jwtSecret string, m *metrics.ServerMetrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(Instrument(m))
	r.Use(Auth(jwtSecret))

	cartHandler := NewCartHandler(carts)
	paymentHandler := NewPaymentHandler(payments)
	orderHandler := NewOrderHandler(orders)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Get("/session", cartHandler.CheckSession)
		r.Post("/email", cartHandler.SetEmail)
		r.Post("/items", cartHandler.AddItem)
		r.Post("/items/bulk", cartHandler.AddItems)
		r.Put("/items/{id}", cartHandler.UpdateQuantity)
		r.Delete("/items/{id}", cartHandler.RemoveItem)
		r.With(RequireAuth).Post("/migrate", cartHandler.Migrate)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/initiate", paymentHandler.Initiate)
		r.Post("/verify", paymentHandler.Verify)
		r.Post("/resend-code", paymentHandler.Resend)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/", orderHandler.List)
		r.Get("/{reference}", orderHandler.Get)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}
