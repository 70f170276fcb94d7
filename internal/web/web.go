package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storebot-tg-app/internal/ledger"
	"storebot-tg-app/internal/store"
)

// NewRouter builds the read-only storefront status surface. Everything
// mutating goes through the bot; this only exposes what is already
// public in the storefront chat.
func NewRouter(logger *log.Logger, st *store.Store, led *ledger.Ledger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/catalog", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(logger, w, st.Items())
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(logger, w, led.All())
	})

	return r
}

func writeJSON(logger *log.Logger, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("encode response: %v", err)
	}
}
