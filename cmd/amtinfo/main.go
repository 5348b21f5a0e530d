// CLAUDE:SUMMARY Entry point for the amtinfo HTTP service — chi router, bcrypt-guarded admin refresh, optional MCP stdio.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/amtinfo/amt"
	"github.com/hazyhaar/amtinfo/dbopen"
	"github.com/hazyhaar/amtinfo/httpguard"
	"github.com/hazyhaar/amtinfo/idgen"
)

func main() {
	port := env("PORT", "8086")
	datasetPath := env("DATASET_DB", "db/dataset.db")
	cachePath := env("CACHE_DB", "db/cache.db")
	datasetFile := env("DATASET_FILE", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Admin password, bcrypt-hashed at startup so the plaintext never sits
	// in memory longer than needed.
	var adminHash []byte
	if pw := os.Getenv("ADMIN_PASSWORD"); pw != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("admin password hash", "error", err)
			os.Exit(1)
		}
		adminHash = h
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Databases.
	dataDB, err := dbopen.Open(datasetPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("dataset db", "error", err)
		os.Exit(1)
	}
	defer dataDB.Close()

	cacheDB, err := dbopen.Open(cachePath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("cache db", "error", err)
		os.Exit(1)
	}
	defer cacheDB.Close()

	// Optional external tiers.
	opts := []amt.Option{
		amt.WithCivicDirectory(os.Getenv("CIVICDATA_URL")),
		amt.WithChatModel(
			os.Getenv("MODEL_BASE_URL"),
			env("MODEL_NAME", "qwen2.5-7b-instruct"),
			os.Getenv("MODEL_API_KEY"),
		),
	}
	if os.Getenv("MODEL_BASE_URL") == "" {
		slog.Warn("MODEL_BASE_URL not set; serving default records only")
	}

	svc, err := amt.New(dataDB, cacheDB, amt.Config{}, logger, opts...)
	if err != nil {
		slog.Error("service", "error", err)
		os.Exit(1)
	}

	// Dataset: embedded seed first, then an optional full BFS export.
	if n, err := svc.SeedDataset(ctx); err != nil {
		slog.Error("seed dataset", "error", err)
		os.Exit(1)
	} else {
		slog.Info("seed dataset loaded", "authorities", n)
	}
	if datasetFile != "" {
		f, err := os.Open(datasetFile)
		if err != nil {
			slog.Error("open dataset file", "path", datasetFile, "error", err)
			os.Exit(1)
		}
		n, err := svc.ImportDataset(ctx, f)
		f.Close()
		if err != nil {
			slog.Error("import dataset", "path", datasetFile, "error", err)
			os.Exit(1)
		}
		slog.Info("dataset imported", "path", datasetFile, "authorities", n)
	}

	// Optional MCP over stdio.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "amtinfo",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
	}

	// Router.
	r := chi.NewRouter()
	r.Use(httpguard.SecurityHeaders(httpguard.DefaultHeaders()))
	r.Use(httpguard.MaxBody(64 * 1024))
	r.Use(httpguard.NewRateLimiter(10, 20).Middleware)
	r.Use(requestLog)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/resolve", func(w http.ResponseWriter, r *http.Request) {
		location := r.URL.Query().Get("location")
		if location == "" {
			writeError(w, 400, fmt.Errorf("location is required"))
			return
		}
		res, err := svc.Resolve(r.Context(), location, r.URL.Query().Get("canton"))
		if err != nil {
			if errors.Is(err, amt.ErrNotFound) {
				writeError(w, 404, err)
				return
			}
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Get("/api/info", func(w http.ResponseWriter, r *http.Request) {
		location := r.URL.Query().Get("location")
		if location == "" {
			writeError(w, 400, fmt.Errorf("location is required"))
			return
		}
		res, err := svc.Lookup(r.Context(), location, r.URL.Query().Get("canton"), amt.InfoOptions{})
		if err != nil {
			if errors.Is(err, amt.ErrNotFound) {
				writeError(w, 404, err)
				return
			}
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Get("/api/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.CacheStats(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, stats)
	})

	// Admin: forced rebuild of one municipality's record.
	r.Post("/api/admin/refresh", func(w http.ResponseWriter, r *http.Request) {
		if adminHash == nil {
			writeError(w, 403, fmt.Errorf("ADMIN_PASSWORD not configured"))
			return
		}
		if bcrypt.CompareHashAndPassword(adminHash, []byte(r.Header.Get("X-Admin-Password"))) != nil {
			writeJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		var req struct {
			BFSNr int `json:"bfs_nr"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.Refresh(r.Context(), req.BFSNr)
		if err != nil {
			if errors.Is(err, amt.ErrNotFound) {
				writeError(w, 404, err)
				return
			}
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, res)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("amtinfo starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

// requestLog tags each request with a sortable ID and logs its outcome.
func requestLog(next http.Handler) http.Handler {
	newID := idgen.Prefixed("req_", idgen.NanoID(12))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := newID()
		next.ServeHTTP(w, r)
		slog.Debug("request",
			"id", id, "method", r.Method, "path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
