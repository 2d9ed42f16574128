package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the cart and order endpoints. Transition and the all-orders
// listing sit on an /admin subtree outside the user auth requirement; real
// deployments put their own authorization in front of it.
func NewRouter(cart *CartHandler, order *OrderHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cart.GetCart)
				r.Delete("/", cart.ClearCart)
				r.Post("/items", cart.AddItem)
				r.Put("/items/{productID}", cart.UpdateItem)
				r.Delete("/items/{productID}", cart.RemoveItem)
				r.Post("/coupon", cart.ApplyCoupon)
				r.Delete("/coupon", cart.RemoveCoupon)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", order.Checkout)
				r.Get("/", order.ListOrders)
				r.Get("/{orderID}", order.GetOrder)
			})
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Get("/", order.ListAllOrders)
			r.Put("/{orderID}/status", order.TransitionOrder)
		})
	})

	return r
}
