// Package main provides the HTTP API server for sale detail management.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmanet/saledetail-service/internal/config"
	"github.com/pharmanet/saledetail-service/internal/logger"
	"github.com/pharmanet/saledetail-service/internal/model"
	"github.com/pharmanet/saledetail-service/internal/repository"
	"github.com/pharmanet/saledetail-service/internal/service"
)

const (
	contentTypeJSON        = "Content-Type"
	applicationJSON        = "application/json"
	actorHeader            = "X-Actor-Id"
	failedToEncodeResponse = "failed to encode response"
	decimalBase            = 10
	int64BitSize           = 64
	defaultFailedLimit     = 100
	exitCode               = 1
)

// APIServer handles HTTP requests for sale detail management.
type APIServer struct {
	saleDetailService service.SaleDetailService
	outboxRepo        repository.OutboxRepository
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(saleDetailService service.SaleDetailService, outboxRepo repository.OutboxRepository) *APIServer {
	return &APIServer{
		saleDetailService: saleDetailService,
		outboxRepo:        outboxRepo,
	}
}

// SaleDetails handles POST /saledetails (register) and GET /saledetails (list).
func (s *APIServer) SaleDetails(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.register(w, r)
	case http.MethodGet:
		s.list(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *APIServer) register(w http.ResponseWriter, r *http.Request) {
	var params model.CreateSaleDetailParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if params.CreatedBy == nil {
		params.CreatedBy = actorID(r)
	}

	detail, err := s.saleDetailService.Register(r.Context(), &params)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, detail)
}

func (s *APIServer) list(w http.ResponseWriter, r *http.Request) {
	details, err := s.saleDetailService.GetAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// GetSaleDetail handles GET /saledetails/get endpoint for single row retrieval.
func (s *APIServer) GetSaleDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	detail, err := s.saleDetailService.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// GetBySale handles GET /saledetails/sale endpoint listing one sale's rows.
func (s *APIServer) GetBySale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	saleID := r.URL.Query().Get("sale_id")
	if saleID == "" {
		http.Error(w, "sale_id parameter is required", http.StatusBadRequest)
		return
	}

	details, err := s.saleDetailService.GetBySaleID(r.Context(), saleID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// UpdateSaleDetail handles PUT /saledetails/update endpoint.
func (s *APIServer) UpdateSaleDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var params model.UpdateSaleDetailParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if params.UpdatedBy == nil {
		params.UpdatedBy = actorID(r)
	}

	detail, err := s.saleDetailService.Update(r.Context(), id, &params)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// DeleteSaleDetail handles DELETE /saledetails/delete endpoint (soft delete).
func (s *APIServer) DeleteSaleDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.saleDetailService.Delete(r.Context(), id, actorID(r)); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FailedOutbox handles GET /outbox/failed endpoint listing dead-lettered records.
func (s *APIServer) FailedOutbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultFailedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}

		limit = parsed
	}

	records, err := s.outboxRepo.ListFailed(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// PurgeOutbox handles POST /outbox/purge endpoint deleting old PUBLISHED records.
func (s *APIServer) PurgeOutbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	before := r.URL.Query().Get("before")
	cutoff, err := time.Parse(time.RFC3339, before)
	if err != nil {
		http.Error(w, "before parameter must be RFC3339", http.StatusBadRequest)
		return
	}

	purged, err := s.outboxRepo.PurgePublishedBefore(r.Context(), cutoff)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}

// HealthCheck handles GET /health endpoint for service health check.
func (*APIServer) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		http.Error(w, "ID parameter is required", http.StatusBadRequest)
		return 0, false
	}

	id, err := strconv.ParseInt(idStr, decimalBase, int64BitSize)
	if err != nil {
		http.Error(w, "Invalid ID parameter", http.StatusBadRequest)
		return 0, false
	}

	return id, true
}

func actorID(r *http.Request) *int64 {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		return nil
	}

	id, err := strconv.ParseInt(raw, decimalBase, int64BitSize)
	if err != nil {
		return nil
	}

	return &id
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrSaleDetailNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidSaleID),
		errors.Is(err, model.ErrInvalidMedicineID),
		errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInvalidUnitPrice),
		errors.Is(err, model.ErrDescriptionTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(contentTypeJSON, applicationJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, failedToEncodeResponse, http.StatusInternalServerError)
		return
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel)
	slog.SetDefault(loggerInstance)

	dbPool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer dbPool.Close()

	saleDetailService := service.NewSaleDetailServiceImpl(repository.NewUnitOfWorkFactory(dbPool))

	server := NewAPIServer(saleDetailService, repository.NewOutboxRepositoryImpl(dbPool))

	http.HandleFunc("/saledetails", server.SaleDetails)
	http.HandleFunc("/saledetails/get", server.GetSaleDetail)
	http.HandleFunc("/saledetails/sale", server.GetBySale)
	http.HandleFunc("/saledetails/update", server.UpdateSaleDetail)
	http.HandleFunc("/saledetails/delete", server.DeleteSaleDetail)
	http.HandleFunc("/outbox/failed", server.FailedOutbox)
	http.HandleFunc("/outbox/purge", server.PurgeOutbox)
	http.HandleFunc("/health", server.HealthCheck)

	port := cfg.Port

	slog.Info("starting API server", slog.String("service", "api"), slog.String("port", port))

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		slog.Error("failed to start server", slog.String("error", err.Error()))
		return
	}
}
