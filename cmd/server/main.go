package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"pathtiles/internal/config"
	"pathtiles/internal/history"
	"pathtiles/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		log.Fatal(err)
	}
	rules, err := cfg.Rules()
	if err != nil {
		log.Fatal(err)
	}

	var recorder ws.Recorder
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
		recorder = store
		log.Printf("recording finished games to %s", cfg.HistoryPath)
	}

	hub := ws.NewHub(cfg.OriginAllowlist, rules, recorder)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log.Printf("server listening on %s (board %dx%d, %d ports per edge)",
		cfg.Addr, rules.Board.Width, rules.Board.Height, rules.Board.PortsPerEdge)
	if err := http.ListenAndServe(cfg.Addr, cors(cfg.OriginAllowlist, mux)); err != nil {
		log.Fatal(err)
	}
}

func cors(allow []string, next http.Handler) http.Handler {
	allowSet := map[string]struct{}{}
	for _, a := range allow {
		if a != "" {
			allowSet[a] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowSet[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
