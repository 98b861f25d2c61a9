package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ecommerce-platform/internal/handlers"
	"ecommerce-platform/internal/middleware"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandler
	Products *handlers.ProductHandler
	Carts    *handlers.CartHandler
	Tickets  *handlers.TicketHandler
	Payments *handlers.PaymentHandler
	Sessions *middleware.AuthMiddleware
}

// NewRouter builds the API route table
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(h.Sessions.LoadUser)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/logout", h.Auth.Logout)
			r.Get("/current", h.Auth.Current)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{id}", h.Products.Get)

			r.Group(func(r chi.Router) {
				r.Use(h.Sessions.RequireAdmin)
				r.Post("/", h.Products.Create)
				r.Put("/{id}", h.Products.Update)
				r.Delete("/{id}", h.Products.Delete)
			})
		})

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", h.Carts.Create)

			r.Group(func(r chi.Router) {
				r.Use(h.Sessions.RequireAdmin)
				r.Get("/", h.Carts.ListCarts)
			})

			r.Route("/{cid}", func(r chi.Router) {
				r.Get("/", h.Carts.Get)
				r.Put("/", h.Carts.Replace)
				r.Delete("/", h.Carts.Clear)
				r.Post("/purchase", h.Carts.Purchase)
				r.Post("/pay", h.Carts.Pay)

				r.Route("/products/{pid}", func(r chi.Router) {
					r.Post("/", h.Carts.AddProduct)
					r.Put("/", h.Carts.UpdateQuantity)
					r.Delete("/", h.Carts.RemoveProduct)
				})
			})
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Use(h.Sessions.RequireAuth)
			r.Get("/mine", h.Tickets.Mine)
			r.Get("/by-code/{code}", h.Tickets.GetByCode)
			r.Get("/{id}", h.Tickets.Get)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/webhook", h.Payments.Webhook)
			r.Get("/success", h.Payments.Success)
			r.Get("/failure", h.Payments.Failure)
			r.Get("/pending", h.Payments.Pending)
		})
	})

	return r
}
