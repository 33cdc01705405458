package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from environment")
	}
	cfg = loadConfig()
	jwtSecret = []byte(cfg.JWTSecret)
	initDB()

	mux := http.NewServeMux()

	// Auth endpoints
	mux.Handle("/api/register", registerHandler(db))
	mux.Handle("/api/login", loginHandler(db))

	// Own profile
	mux.Handle("/api/me/profile", meProfileHandler(db))
	mux.Handle("/api/me", deleteMeHandler(db)) // DELETE: soft-delete account profile

	// Other users (read-only)
	mux.Handle("/api/users/", usersDispatcher(db)) // GET /api/users/{id}/profile

	// Discovery feed
	mux.Handle("/api/discover", discoverHandler(db))

	// Likes & matches
	mux.Handle("/api/likes", createLikeHandler(db))
	mux.Handle("/api/likes/received", likesReceivedHandler(db))
	mux.Handle("/api/matches", DataLoaderMiddleware(db)(matchesHandler(db)))

	// Blocks
	mux.Handle("/api/blocks", blocksHandler(db))
	mux.Handle("/api/blocks/", blocksActionsRouter(db)) // POST/DELETE /api/blocks/{id}

	// Match notification socket
	mux.Handle("/ws/notifications", wsNotificationsHandler())

	// Health check endpoint for Docker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	limiter := newIPRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := corsMiddleware.Handler(withRateLimit(limiter, mux))

	log.Printf("Starting CampusMatch backend on %s...", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, handler))
}
