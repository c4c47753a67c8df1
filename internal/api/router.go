package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/climatehealth/healthrisk/internal/api/handlers"
	"github.com/climatehealth/healthrisk/internal/api/middleware"
)

// Router wraps mux.Router with the service middleware chain.
type Router struct {
	*mux.Router
	middleware []mux.MiddlewareFunc
	endpoint   string
}

// NewRouter creates and configures a router with all dependencies.
func NewRouter(predictionHandler *handlers.PredictionHandler, endpoint string) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		middleware: []mux.MiddlewareFunc{
			middleware.Logging,
		},
		endpoint: endpoint,
	}

	r.setup()
	r.registerRoutes(predictionHandler)

	return r
}

func (r *Router) setup() {
	for _, m := range r.middleware {
		r.Use(m)
	}
}

func (r *Router) registerRoutes(predictionHandler *handlers.PredictionHandler) {
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	r.MethodNotAllowedHandler = notAllowed

	api := r.PathPrefix(r.endpoint).Subrouter()
	// Subrouters do not inherit the parent's method-mismatch handler.
	api.MethodNotAllowedHandler = notAllowed

	api.HandleFunc("/predict", predictionHandler.Predict).Methods("POST")
	api.HandleFunc("/predict/batch", predictionHandler.PredictBatch).Methods("POST")
	api.HandleFunc("/health", predictionHandler.Health).Methods("GET")
	api.HandleFunc("/model/info", predictionHandler.ModelInfo).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// AddMiddleware adds a new middleware to the router.
func (r *Router) AddMiddleware(middleware mux.MiddlewareFunc) {
	r.Use(middleware)
}
