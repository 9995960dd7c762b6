package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dealradar/compare"
)

// server holds the HTTP handlers. The fetch log store may be nil when the
// service runs without SQLite.
type server struct {
	svc     *compare.Service
	store   *compare.SQLiteCache
	metrics *compare.Metrics
	logger  *slog.Logger
}

func newServer(svc *compare.Service, store *compare.SQLiteCache, metrics *compare.Metrics, logger *slog.Logger) *server {
	return &server{svc: svc, store: store, metrics: metrics, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/api/compare", s.handleCompare)
	r.Get("/api/vendors", s.handleVendors)
	r.Get("/api/vendors/{vendor}/fetches", s.handleFetchHistory)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// wireProduct is the product shape of the JSON API.
type wireProduct struct {
	Name        string  `json:"name"`
	MRP         float64 `json:"mrp"`
	SalePrice   float64 `json:"sale_price"`
	Discount    float64 `json:"discount"`
	ProductLink string  `json:"product_link"`
	Platform    string  `json:"platform"`
	Rating      float64 `json:"rating"`
	Savings     float64 `json:"savings"`
	ImageURL    string  `json:"image_url,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	Synthetic   bool    `json:"synthetic,omitempty"`
}

func toWire(p compare.Product) wireProduct {
	return wireProduct{
		Name:        p.Name,
		MRP:         p.ListPrice,
		SalePrice:   p.SalePrice,
		Discount:    p.DiscountPercent,
		ProductLink: p.URL,
		Platform:    p.Vendor,
		Rating:      p.Rating,
		Savings:     p.Savings,
		ImageURL:    p.ImageURL,
		SKU:         p.SKU,
		Synthetic:   p.Synthetic,
	}
}

type compareRequest struct {
	ProductName string  `json:"product_name"`
	MaxPrice    float64 `json:"max_price"`
	SortBy      string  `json:"sort_by"`
}

type compareResponse struct {
	Success                bool                             `json:"success"`
	Query                  string                           `json:"query"`
	Products               []wireProduct                    `json:"products"`
	TotalCount             int                              `json:"total_count"`
	VendorCounts           map[string]int                   `json:"vendor_counts"`
	BestDeal               *wireProduct                     `json:"best_deal,omitempty"`
	HighestDiscountProduct *wireProduct                     `json:"highest_discount_product,omitempty"`
	PlatformStats          map[string]compare.PlatformStats `json:"platform_stats,omitempty"`
	BestPlatform           string                           `json:"best_platform,omitempty"`
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.svc.Compare(r.Context(), compare.Request{
		Query:    req.ProductName,
		MaxPrice: req.MaxPrice,
		SortBy:   req.SortBy,
	})
	if errors.Is(err, compare.ErrEmptyQuery) {
		s.writeError(w, http.StatusBadRequest, "product_name is required")
		return
	}
	if err != nil {
		s.logger.Error("comparison failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "comparison failed")
		return
	}

	resp := compareResponse{
		Success:       true,
		Query:         result.Query,
		Products:      make([]wireProduct, len(result.Products)),
		TotalCount:    result.TotalCount,
		VendorCounts:  result.VendorCounts,
		PlatformStats: result.PlatformStats,
		BestPlatform:  result.BestPlatform,
	}
	for i, p := range result.Products {
		resp.Products[i] = toWire(p)
	}
	if result.BestDeal != nil {
		wp := toWire(*result.BestDeal)
		resp.BestDeal = &wp
	}
	if result.HighestDiscount != nil {
		wp := toWire(*result.HighestDiscount)
		resp.HighestDiscountProduct = &wp
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleVendors(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"vendors": s.svc.Vendors(),
	})
}

func (s *server) handleFetchHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "fetch log not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.FetchHistory(r.Context(), chi.URLParam(r, "vendor"), limit)
	if err != nil {
		s.logger.Error("fetch history failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "fetch history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"fetches": entries,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
