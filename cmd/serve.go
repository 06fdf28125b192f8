package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uzuki-lab/kyotei-cli/internal/fetch"
	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/parse"
	"github.com/uzuki-lab/kyotei-cli/internal/venue"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP prediction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPredictor(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Predictor.Predict),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// predictFunc is the prediction entry point the HTTP surface calls,
// narrowed to a function so handlers are testable without a live fetcher.
type predictFunc func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error)

// predictRequest accepts either a free-text query or explicit fields.
type predictRequest struct {
	Text  string `json:"text,omitempty"`
	Venue string `json:"venue,omitempty"`
	Race  int    `json:"race,omitempty"`
	Date  string `json:"date,omitempty"`
}

// newRouter builds the HTTP surface: health, the venue registry and the
// prediction endpoint.
func newRouter(predict predictFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/venues", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, venue.All())
		})

		r.Post("/predict", func(w http.ResponseWriter, req *http.Request) {
			var body predictRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			q, err := queryFromRequest(body)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			pred, err := predict(req.Context(), q)
			if err != nil {
				var nda *fetch.NoDataAvailable
				if errors.As(err, &nda) {
					writeJSON(w, http.StatusNotFound, map[string]any{
						"error":          "no pre-race data available",
						"race":           q.Key(),
						"attempted_urls": nda.Attempted,
					})
					return
				}
				zap.L().Error("prediction failed",
					zap.String("race", q.Key()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "prediction failed")
				return
			}

			writeJSON(w, http.StatusOK, pred)
		})
	})

	return r
}

// queryFromRequest resolves the free-text form first, then the field form.
func queryFromRequest(body predictRequest) (model.RaceQuery, error) {
	if body.Text != "" {
		return parse.Parse(body.Text)
	}
	return resolveQuery(body.Venue, body.Race, body.Date)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
