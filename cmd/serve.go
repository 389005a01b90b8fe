package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/parts-cli/internal/keystore"
	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/resolver"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the part resolution API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initResolver(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		keys := keystore.New(cfg.Server.DemoKeys)
		router := newRouter(env, keys)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP routes. The health endpoint is open; the API
// routes require a demo key.
func newRouter(env *resolverEnv, keys *keystore.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	r.Use(chimiddleware.Timeout(120 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(demoKeyAuth(keys))

		r.Post("/parts/resolve", handleResolve(env))
		r.Get("/parts", handleListParts(env))
	})

	return r
}

// demoKeyAuth rejects requests without a known X-API-Key and records usage
// per key.
func demoKeyAuth(keys *keystore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := strings.TrimSpace(req.Header.Get("X-API-Key"))
			if key == "" || !keys.Authorize(key) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing API key"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func handleResolve(env *resolverEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Description string `json:"description"`
			Make        string `json:"make"`
			Model       string `json:"model"`
			Year        string `json:"year"`
			UseDatabase *bool  `json:"use_database"`
			UseManual   *bool  `json:"use_manual_search"`
			UseWeb      *bool  `json:"use_web_search"`
			SaveResults bool   `json:"save_results"`
			BypassCache bool   `json:"bypass_cache"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(body.Description) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
			return
		}

		rreq := resolver.DefaultRequest(model.PartQuery{
			Description: body.Description,
			Make:        body.Make,
			Model:       body.Model,
			Year:        body.Year,
		})
		if body.UseDatabase != nil {
			rreq.UseDatabase = *body.UseDatabase
		}
		if body.UseManual != nil {
			rreq.UseManualSearch = *body.UseManual
		}
		if body.UseWeb != nil {
			rreq.UseWebSearch = *body.UseWeb
		}
		rreq.SaveResults = body.SaveResults
		rreq.BypassCache = body.BypassCache

		resp := env.Resolver.Resolve(req.Context(), rreq)

		zap.L().Info("api resolve complete",
			zap.String("description", body.Description),
			zap.Bool("recommended", resp.RecommendedResult != nil),
		)
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleListParts(env *resolverEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		limit, offset := 50, 0
		if v := req.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		if v := req.URL.Query().Get("offset"); v != "" {
			fmt.Sscanf(v, "%d", &offset)
		}

		parts, err := env.Store.ListParts(req.Context(), limit, offset)
		if err != nil {
			zap.L().Error("api list parts failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list parts failed"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"parts": parts, "count": len(parts)})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
