// Package app — служебная HTTP-поверхность: здоровье, метрики,
// выгрузки и резервное копирование.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/otabek-dev/mahalla-admin/internal/db"
	"github.com/otabek-dev/mahalla-admin/internal/export"
	"github.com/otabek-dev/mahalla-admin/internal/metrics"
)

type HTTPServer struct {
	srv *http.Server
}

type Options struct {
	Addr         string
	DatabasePath string
	BackupDir    string
}

func StartHTTP(ctx context.Context, opts Options, database *sql.DB, log *zap.Logger) *HTTPServer {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := database.PingContext(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		metrics.ObserveDBPing(time.Since(t0))
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/export/points.xlsx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		days := 0
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "bad days parameter", http.StatusBadRequest)
				return
			}
			days = n
		}

		wb, err := export.PointsReport(r.Context(), database, days)
		if err != nil {
			log.Error("выгрузка отчёта не удалась", zap.Error(err))
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		path, err := wb.SaveTemp("points_report")
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		defer os.Remove(path)

		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="points_report.xlsx"`)
		http.ServeFile(w, r, path)
	})

	mux.HandleFunc("/admin/backup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		path, err := db.Backup(opts.DatabasePath, opts.BackupDir)
		if err != nil {
			log.Error("резервная копия не удалась", zap.Error(err))
			http.Error(w, "backup failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"backup": path})
	})

	srv := &http.Server{Addr: opts.Addr, Handler: mux}

	go func() {
		_ = srv.ListenAndServe() // закрываем аккуратно при Shutdown
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return &HTTPServer{srv: srv}
}
