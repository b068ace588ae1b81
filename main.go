package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tickzone/server"
	"tickzone/store"
)

// tickzone：TCP 权威区域服务 + HTTP 管理/WebSocket 接入
func main() {
	var (
		configPath string
		listen     string
		httpAddr   string
		sessionDB  string
	)
	flag.StringVar(&configPath, "config", "", "path to zone YAML config")
	flag.StringVar(&listen, "listen", "", "game listen address, overrides config (e.g. 0.0.0.0:3215)")
	flag.StringVar(&httpAddr, "http", "", "admin HTTP address, overrides config (empty in both disables it)")
	flag.StringVar(&sessionDB, "sessions", "", "sqlite session ledger path, overrides config")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if sessionDB != "" {
		cfg.SessionDB = sessionDB
	}

	if err := server.InitLogger(cfg.LogOptions()); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	opts := []server.Option{server.WithDirector(server.NewEnemyDirector(cfg.Enemies))}
	var sessions *store.SessionLog
	if cfg.SessionDB != "" {
		sessions, err = store.Open(cfg.SessionDB)
		if err != nil {
			server.Log.Fatalf("open session ledger: %v", err)
		}
		defer sessions.Close()
		opts = append(opts, server.WithDisconnectHandler(sessions))
	}

	zone := server.NewZone(cfg, opts...)
	if err := zone.Listen(); err != nil {
		server.Log.Errorf("zone %s: %v", cfg.ZoneName, err)
		return
	}

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/", zone.Handler())
		if sessions != nil {
			mux.HandleFunc("/admin/sessions", handleSessions(sessions))
		}
		srv = &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
		go func() {
			server.Log.Infof("admin listening on %s (websocket=%v)", cfg.HTTPAddr, cfg.WebSocket)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				server.Log.Errorf("admin listen: %v", err)
			}
		}()
	}

	// 优雅退出：Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := zone.Run(ctx); err != nil {
		server.Log.Errorf("zone %s stopped: %v", cfg.ZoneName, err)
	}
	server.Log.Info("Shutting down...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// handleSessions 最近结束的会话：GET /admin/sessions?limit=50
func handleSessions(sessions *store.SessionLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		recs, err := sessions.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recs)
	}
}
