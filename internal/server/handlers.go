package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/cashback-scout/internal/brands"
	"github.com/jonathan/cashback-scout/internal/db"
	"github.com/jonathan/cashback-scout/internal/detection/brand"
	"github.com/jonathan/cashback-scout/internal/detection/pdp"
	"github.com/jonathan/cashback-scout/internal/fetch"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
	"github.com/jonathan/cashback-scout/internal/page"
)

// DetectRequest asks for one page evaluation. When HTML is set it is
// evaluated as posted; otherwise the server loads URL itself.
type DetectRequest struct {
	URL   string `json:"url" validate:"required,http_url"`
	HTML  string `json:"html,omitempty"`
	TabID string `json:"tab_id,omitempty" validate:"omitempty,max=128"`
}

// NavigateRequest starts a new page view in a tab.
type NavigateRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// DebugResponse explains both detectors' view of a page.
type DebugResponse struct {
	URL      string          `json:"url"`
	Platform string          `json:"platform"`
	Brand    brand.Result    `json:"brand"`
	PDP      pdp.DebugResult `json:"pdp"`
}

// NavigateResponse describes the page view a navigation started.
type NavigateResponse struct {
	PageID    string    `json:"page_id"`
	TabID     string    `json:"tab_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// BrandsResponse lists registry records.
type BrandsResponse struct {
	Count  int             `json:"count"`
	Brands []brands.Record `json:"brands"`
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &ErrValidation{Message: "request body too large"}
		}
		return &ErrValidation{Message: "invalid JSON body"}
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ErrValidation{Field: verrs[0].Field(), Message: "failed '" + verrs[0].Tag() + "'"}
		}
		return &ErrValidation{Message: err.Error()}
	}
	return nil
}

// handleDetect evaluates a page for a tab and returns the decision.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	ctx := r.Context()
	pc := s.orchestrator.Context(ctx, req.TabID, req.URL)

	var d orchestrator.Decision
	if req.HTML != "" {
		doc, err := page.Parse(req.HTML, req.URL)
		d = s.orchestrator.Evaluate(ctx, pc, doc)
		if err != nil {
			d.Error = err.Error()
		}
	} else {
		d = s.orchestrator.Run(ctx, pc, s.source)
	}
	s.jsonResponse(w, http.StatusOK, d)
}

// handleDebug runs both detectors with full signal detail. Nothing is
// notified or recorded.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	doc, err := s.load(r.Context(), req)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	reg := s.registry(r.Context())
	s.jsonResponse(w, http.StatusOK, DebugResponse{
		URL:      req.URL,
		Platform: string(fetch.DetectDocumentPlatform(doc)),
		Brand:    brand.NewDetector().Detect(doc, reg),
		PDP:      s.orchestrator.Scorer().Debug(doc),
	})
}

func (s *Server) load(ctx context.Context, req DetectRequest) (*page.Document, error) {
	if req.HTML != "" {
		return page.Parse(req.HTML, req.URL)
	}
	return s.source.Load(ctx, req.URL)
}

// handleNavigate starts a new page view, so the next actionable detection in
// the tab notifies again.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("tab_id")
	var req NavigateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	pc := s.orchestrator.Navigate(r.Context(), tabID, req.URL)
	s.jsonResponse(w, http.StatusOK, NavigateResponse{
		PageID:    pc.ID,
		TabID:     pc.TabID,
		URL:       pc.URL,
		CreatedAt: pc.CreatedAt,
	})
}

// handleResetTab forgets a closed tab.
func (s *Server) handleResetTab(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.Reset(r.Context(), r.PathValue("tab_id")); err != nil {
		s.errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// registry returns the service-wide registry, loaded on first use. A failed
// load is served once and retried on the next call.
func (s *Server) registry(ctx context.Context) *brands.Registry {
	s.catalogMu.Lock()
	pc := s.catalog
	s.catalogMu.Unlock()

	reg := s.orchestrator.EnsureRegistry(ctx, pc)
	if pc.RegistryLoadFailed() {
		s.catalogMu.Lock()
		if s.catalog == pc {
			s.catalog = orchestrator.NewPageContext("", "")
		}
		s.catalogMu.Unlock()
	}
	return reg
}

// handleListBrands lists the registry, optionally filtered by ?q=.
func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	reg := s.registry(r.Context())

	var records []brands.Record
	if q := r.URL.Query().Get("q"); q != "" {
		records = reg.Search(q)
	} else {
		records = reg.Records()
	}
	if records == nil {
		records = []brands.Record{}
	}
	s.jsonResponse(w, http.StatusOK, BrandsResponse{Count: len(records), Brands: records})
}

// handleLookupBrand resolves ?name= to a registry record.
func (s *Server) handleLookupBrand(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.errorResponse(w, &ErrValidation{Field: "name", Message: "query parameter is required"})
		return
	}

	rec, ok := s.registry(r.Context()).Lookup(name)
	if !ok {
		s.errorResponse(w, &ErrNotFound{Resource: "brand", Key: name})
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// handleListDetections lists recorded decisions, newest first.
func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	if s.detections == nil {
		s.errorResponse(w, &ErrUnavailable{Feature: "detection history"})
		return
	}

	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), db.DefaultListLimit)
	if err != nil {
		s.errorResponse(w, &ErrValidation{Field: "limit", Message: "must be an integer"})
		return
	}
	actionable, _ := strconv.ParseBool(q.Get("actionable"))

	rows, err := s.detections.ListDetections(r.Context(), db.ListFilter{
		Limit:          limit,
		ActionableOnly: actionable,
		Brand:          q.Get("brand"),
	})
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if rows == nil {
		rows = []db.Detection{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"count": len(rows), "detections": rows})
}

// handleTopBrands returns brands ranked by actionable detections.
func (s *Server) handleTopBrands(w http.ResponseWriter, r *http.Request) {
	if s.detections == nil {
		s.errorResponse(w, &ErrUnavailable{Feature: "detection history"})
		return
	}

	limit, err := queryInt(r.URL.Query().Get("limit"), 10)
	if err != nil {
		s.errorResponse(w, &ErrValidation{Field: "limit", Message: "must be an integer"})
		return
	}
	rows, err := s.detections.TopBrands(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if rows == nil {
		rows = []db.BrandCount{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"brands": rows})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tabs":   s.orchestrator.Tabs(),
	})
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
