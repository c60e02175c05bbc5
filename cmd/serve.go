package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/checklist"
	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/kb"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/monitoring"
	"github.com/sells-group/bidquote/internal/pipeline"
	"github.com/sells-group/bidquote/internal/store"
	"github.com/sells-group/bidquote/internal/validate"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP pricing and validation API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		k, err := loadKB(ctx, "", st)
		if err != nil {
			return err
		}
		v, err := newValidator()
		if err != nil {
			return err
		}
		checker, err := newChecker()
		if err != nil {
			return err
		}

		collector := monitoring.NewCollector(st)
		if cfg.Monitoring.WebhookURL != "" {
			go monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring).Run(ctx)
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: newRouter(&server{
				cfg:       cfg,
				kb:        k,
				validator: v,
				checker:   checker,
				store:     st,
				collector: collector,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port), zap.Int("kb_references", k.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// server holds the long-lived state behind the HTTP handlers. store and
// collector may be nil, in which case runs are neither recorded nor served.
type server struct {
	cfg       *config.Config
	kb        *kb.KB
	validator *validate.Validator
	checker   *checklist.Checker
	store     store.Store
	collector *monitoring.Collector
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/estimate", s.handleEstimate)
		r.Post("/validate", s.handleValidate)
		r.Get("/kb", s.handleKB)
		r.Get("/runs/{id}", s.handleRun)
		r.Get("/metrics", s.handleMetrics)
	})
	return r
}

// quoteRequest is the body of /v1/estimate and /v1/validate.
type quoteRequest struct {
	Items        []*model.EstimateItem `json:"items"`
	Building     *model.BuildingInfo   `json:"building_info"`
	FloorArea    float64               `json:"floor_area"`
	BuildingType string                `json:"building_type"`
	Disciplines  []string              `json:"disciplines"`
	AutoCorrect  bool                  `json:"auto_correct"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"kb_references": s.kb.Len(),
	})
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuoteRequest(w, r)
	if !ok {
		return
	}
	disciplines, err := parseDisciplines(req.Disciplines)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []pipeline.Option{pipeline.WithChecker(s.checker)}
	if s.store != nil {
		opts = append(opts, pipeline.WithStore(s.store))
	}
	res, err := pipeline.New(s.cfg, s.kb, s.validator, opts...).Run(r.Context(), pipeline.Request{
		Items:        req.Items,
		Building:     req.Building,
		Disciplines:  disciplines,
		FloorArea:    req.FloorArea,
		BuildingType: req.BuildingType,
		AutoCorrect:  req.AutoCorrect,
		SkipLLM:      true,
	})
	if err != nil {
		zap.L().Error("estimate request failed", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuoteRequest(w, r)
	if !ok {
		return
	}

	area := req.FloorArea
	if area <= 0 && req.Building != nil {
		area = req.Building.FloorArea
	}
	if area <= 0 {
		area = s.cfg.Estimate.DefaultFloorArea
	}
	bt := req.BuildingType
	if bt == "" {
		bt = s.cfg.Estimate.BuildingType
	}

	report := s.validator.Validate(req.Items, area, bt)
	var adjustments []*validate.Adjustment
	for _, d := range itemDisciplineList(&itemsFile{Items: req.Items}) {
		if adj := s.validator.Correction(req.Items, d, area, bt); adj != nil {
			adjustments = append(adjustments, adj)
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"validation":  report,
		"adjustments": adjustments,
		"report_text": validate.FormatReport(report),
	})
}

func (s *server) handleKB(w http.ResponseWriter, r *http.Request) {
	var d model.Discipline
	if q := r.URL.Query().Get("discipline"); q != "" {
		parsed, ok := model.ParseDiscipline(q)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown discipline %q", q))
			return
		}
		d = parsed
	}
	refs := s.kb.References(d)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"count":      len(refs),
		"references": refs,
	})
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not available")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSONResponse(w, http.StatusOK, run)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics are not available")
		return
	}
	hours := s.cfg.Monitoring.LookbackWindowHours
	if q := r.URL.Query().Get("hours"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}
	snap, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("collect metrics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	writeJSONResponse(w, http.StatusOK, snap)
}

func decodeQuoteRequest(w http.ResponseWriter, r *http.Request) (*quoteRequest, bool) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required")
		return nil, false
	}
	return &req, true
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONResponse(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
