package server

import (
	"log"
	"net/http"
)

// Handler assembles the interview API, the observer websocket, and a
// health endpoint into one mux.
func Handler(hub *Hub, store SessionStore, issuer *TokenIssuer, limiter *RateLimiter, controls ControlHooks) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, store, issuer, limiter, controls)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func Serve(addr string, hub *Hub, store SessionStore, issuer *TokenIssuer, limiter *RateLimiter, controls ControlHooks) error {
	h := Handler(hub, store, issuer, limiter, controls)

	log.Printf("interview API at http://%s", addr)
	return http.ListenAndServe(addr, h)
}
