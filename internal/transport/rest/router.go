package rest

import (
	"encoding/json"
	"net/http"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/rest/handler"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/rest/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Container holds all dependencies for the router
type Container struct {
	Auth         middleware.Resolver
	Rooms        handler.RoomOps
	Profiles     handler.Profiles
	Leaderboards handler.Leaderboards
	Limiter      middleware.Limiter
	Guard        middleware.Guard
	WS           http.HandlerFunc
	Stats        func() map[string]int
	CORSOrigins  string
	Log          *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	roomHandler := handler.NewRoomHandler(c.Rooms, c.Log)
	playerHandler := handler.NewPlayerHandler(c.Profiles, c.Leaderboards, c.Log)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.Auth, c.Log)
	throttle := middleware.NewThrottle(c.Limiter, c.Guard)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORSOrigins))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Player routes (require player auth)
	playerRoutes := v1.NewRoute().Subrouter()
	playerRoutes.Use(authMW.RequirePlayer)

	playerRoutes.HandleFunc("/rooms", throttle.Event("create_room", roomHandler.Create)).Methods("POST", "OPTIONS")
	playerRoutes.HandleFunc("/rooms/quick-match", throttle.Event("quick_match", roomHandler.QuickMatch)).Methods("POST", "OPTIONS")
	playerRoutes.HandleFunc("/players/me", playerHandler.Me).Methods("GET", "OPTIONS")

	// Public routes
	v1.HandleFunc("/rooms/{roomId}", roomHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/leaderboard/{gameType}", playerHandler.Leaderboard).Methods("GET", "OPTIONS")

	// WebSocket route (token in query param or header)
	v1.HandleFunc("/ws", c.WS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		if c.Stats != nil {
			body["stats"] = c.Stats()
		}
		writeJSON(w, http.StatusOK, body)
	}).Methods("GET")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
