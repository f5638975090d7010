package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"plantlab/internal/controller"
	"plantlab/internal/middleware"
)

// RegisterRoutes registers all application routes.
func RegisterRoutes(router *mux.Router, c *controller.ReadingController) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", c.HandleHealth).Methods(http.MethodGet)
	api.HandleFunc("/config", c.HandleConfig).Methods(http.MethodGet)
	api.HandleFunc("/sensors", c.HandleSensors).Methods(http.MethodGet)
	api.HandleFunc("/latest", c.HandleLatest).Methods(http.MethodGet)
	api.HandleFunc("/history", c.HandleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{sensor_id}", c.HandleSensorHistory).Methods(http.MethodGet)

	api.HandleFunc("/ingest", c.HandleIngest).Methods(http.MethodPost)

	for _, r := range []*mux.Router{router, api} {
		r.NotFoundHandler = http.HandlerFunc(c.HandleNotFound)
		r.MethodNotAllowedHandler = http.HandlerFunc(c.HandleMethodNotAllowed)
	}
}

// NewHandler builds the full HTTP handler: routes, access log, panic
// recovery and CORS for the dashboard.
func NewHandler(c *controller.ReadingController, allowedOrigins []string, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	RegisterRoutes(router, c)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	})
	// The access log wraps the router itself so unmatched paths and methods
	// are logged too.
	handler := middleware.RequestLogger(logger)(middleware.Recovery(logger)(router))
	return corsHandler.Handler(handler)
}
