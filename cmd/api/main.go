package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ajdev/loanbook/pkg/config"
	"github.com/ajdev/loanbook/pkg/export"
	"github.com/ajdev/loanbook/pkg/models"
	"github.com/ajdev/loanbook/pkg/planner"
	"github.com/ajdev/loanbook/pkg/schedule"
	"github.com/ajdev/loanbook/pkg/store"
)

// userKeyHeader carries the external identity that namespaces scenarios.
// Authentication itself happens upstream.
const userKeyHeader = "X-User-Key"

// Server holds the planner instance.
type Server struct {
	planner   *planner.Planner
	generator *schedule.Generator
	logger    *zap.Logger
}

func NewServer(s store.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		planner:   planner.NewPlanner(s, logger),
		generator: schedule.NewGenerator(logger),
		logger:    logger,
	}
}

// routes wires every handler onto a router. Kept separate from main so tests
// can serve the same routing table.
func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/schedule", s.computeScheduleHandler).Methods("POST")
	router.HandleFunc("/totals", s.totalsHandler).Methods("GET")

	router.HandleFunc("/scenarios", s.listScenariosHandler).Methods("GET")
	router.HandleFunc("/scenarios", s.createScenarioHandler).Methods("POST")
	router.HandleFunc("/scenarios/{id}", s.getScenarioHandler).Methods("GET")
	router.HandleFunc("/scenarios/{id}", s.updateScenarioHandler).Methods("PUT")
	router.HandleFunc("/scenarios/{id}", s.softDeleteScenarioHandler).Methods("DELETE")
	router.HandleFunc("/scenarios/{id}/name", s.renameScenarioHandler).Methods("PUT")
	router.HandleFunc("/scenarios/{id}/restore", s.restoreScenarioHandler).Methods("POST")
	router.HandleFunc("/scenarios/{id}/purge", s.purgeScenarioHandler).Methods("DELETE")
	router.HandleFunc("/scenarios/{id}/schedule", s.scenarioScheduleHandler).Methods("GET")
	router.HandleFunc("/scenarios/{id}/export", s.exportScenarioHandler).Methods("GET")

	return router
}

// loanRequest is the wire form of loan terms plus overrides.
type loanRequest struct {
	Name              string                       `json:"name"`
	Principal         decimal.Decimal              `json:"principal"`
	AnnualRatePercent decimal.Decimal              `json:"annual_rate_percent"`
	TermMonths        int                          `json:"term_months"`
	StartDate         string                       `json:"start_date"`
	ActualPayments    map[int]decimal.Decimal      `json:"actual_payments"`
	Statuses          map[int]models.PaymentStatus `json:"statuses"`
}

// decode converts the wire form into engine inputs. An empty start date
// defaults to today, matching a freshly opened loan form.
func (req *loanRequest) decode() (models.LoanTerms, models.Overrides, error) {
	startDate := time.Now().Truncate(24 * time.Hour)
	if req.StartDate != "" {
		parsed, err := time.Parse(models.DateLayout, req.StartDate)
		if err != nil {
			return models.LoanTerms{}, models.Overrides{}, fmt.Errorf("invalid start_date %q: expected %s", req.StartDate, models.DateLayout)
		}
		startDate = parsed
	}
	terms := models.LoanTerms{
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		TermMonths:        req.TermMonths,
		StartDate:         startDate,
	}
	overrides := models.Overrides{
		ActualPayments: req.ActualPayments,
		Statuses:       req.Statuses,
	}
	return terms, overrides, nil
}

func (s *Server) computeScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	terms, overrides, err := req.decode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows := s.generator.Generate(terms, overrides)
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) createScenarioHandler(w http.ResponseWriter, r *http.Request) {
	userKey, ok := s.userKey(w, r)
	if !ok {
		return
	}

	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	terms, overrides, err := req.decode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scenario, err := s.planner.SaveScenario(userKey, req.Name, terms, overrides)
	if err != nil {
		s.logger.Error("failed to create scenario", zap.Error(err))
		http.Error(w, fmt.Sprintf("Failed to create scenario: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, scenario)
}

func (s *Server) listScenariosHandler(w http.ResponseWriter, r *http.Request) {
	userKey, ok := s.userKey(w, r)
	if !ok {
		return
	}

	deleted := r.URL.Query().Get("deleted") == "true"
	scenarios, err := s.planner.ListScenarios(userKey, deleted)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if scenarios == nil {
		scenarios = []*models.Scenario{}
	}
	writeJSON(w, http.StatusOK, scenarios)
}

func (s *Server) getScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	scenario, err := s.planner.GetScenario(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (s *Server) updateScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	terms, overrides, err := req.decode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scenario, err := s.planner.UpdateScenario(id, terms, overrides)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (s *Server) renameScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scenario, err := s.planner.RenameScenario(id, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (s *Server) softDeleteScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}
	if err := s.planner.SoftDelete(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) restoreScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}
	if err := s.planner.Restore(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) purgeScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}
	if err := s.planner.PurgeForever(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) scenarioScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	_, rows, err := s.planner.Schedule(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) exportScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	scenario, rows, err := s.planner.Schedule(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", scenario.Name+".csv"))
	if err := export.WriteCSV(w, rows); err != nil {
		s.logger.Error("failed to write csv export", zap.Error(err))
	}
}

func (s *Server) totalsHandler(w http.ResponseWriter, r *http.Request) {
	userKey, ok := s.userKey(w, r)
	if !ok {
		return
	}

	totals, err := s.planner.Totals(userKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) userKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	userKey := r.Header.Get(userKeyHeader)
	if userKey == "" {
		http.Error(w, fmt.Sprintf("Missing %s header", userKeyHeader), http.StatusUnauthorized)
		return "", false
	}
	return userKey, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Scenario not found", http.StatusNotFound)
	case errors.Is(err, planner.ErrScenarioDeleted):
		http.Error(w, "Scenario is in the recycle bin", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func scenarioID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid scenario ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize SQLite store", zap.Error(err))
	}
	defer sqliteStore.Close()
	logger.Info("database connection established", zap.String("path", cfg.DatabasePath))

	server := NewServer(sqliteStore, logger)

	logger.Info("server starting", zap.String("address", cfg.ListenAddress))
	if err := http.ListenAndServe(cfg.ListenAddress, server.routes()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
