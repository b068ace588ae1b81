package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 返回区域当前生效的配置（只读）
// GET /admin/config
func (z *Zone) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, z.cfg)
}

// HandleZone 返回上一帧发布的快照
// GET /admin/zone
func (z *Zone) HandleZone(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, z.Snapshot())
}

// HandleMetrics 输出区域运行指标
// GET /metrics
func (z *Zone) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := z.Snapshot()
	payload := map[string]any{
		"zone":    z.name,
		"tick":    snap.Tick,
		"players": len(snap.Players),
		"metrics": z.metrics.Snapshot(),
	}
	writeJSON(w, payload)
}

// Handler 注册区域提供的全部 HTTP 接口
func (z *Zone) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/config", z.HandleAdminConfig)
	mux.HandleFunc("/admin/zone", z.HandleZone)
	mux.HandleFunc("/metrics", z.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if z.cfg.WebSocket {
		mux.HandleFunc("/ws", z.HandleWS)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
