package shop

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/folioshop/storefront/libs/handlers"
	"github.com/folioshop/storefront/libs/middleware"
	"github.com/folioshop/storefront/services/shop/handler"
)

// Router mounts the payment and catalog endpoints.
// Preflight requests are answered by the cors middleware before routing.
func Router(svc *Service, cat *Catalog, origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.CORS(origins, http.MethodGet, http.MethodPost))

	pay := handler.NewPayment(svc)
	prod := handler.NewProduct(cat)

	r.Method(http.MethodPost, "/create-order", middleware.InstrumentHandler("CreateOrder", handlers.AppHandler(pay.CreateOrder)))
	r.Method(http.MethodGet, "/razorpay-key", middleware.InstrumentHandler("RazorpayKey", handlers.AppHandler(pay.Key)))
	r.Method(http.MethodPost, "/verify-payment", middleware.InstrumentHandler("VerifyPayment", handlers.AppHandler(pay.VerifyPayment)))

	r.Route("/products", func(pr chi.Router) {
		pr.Method(http.MethodGet, "/", middleware.InstrumentHandler("ListProducts", handlers.AppHandler(prod.List)))
		pr.Method(http.MethodGet, "/{productID}", middleware.InstrumentHandler("GetProduct", handlers.AppHandler(prod.Get)))
	})

	return r
}
