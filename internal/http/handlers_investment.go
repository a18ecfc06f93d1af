package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/invest"
)

func (s *Server) handleInvestmentSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.investments.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleContributionPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.investments.ContributionPlan(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	list, err := s.investments.Contributions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleActionItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.investments.ActionItems(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg invest.PlanConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeServiceError(w, r, err)
		return
	}
	saved, err := s.investments.UpdateConfig(r.Context(), cfg)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	var c invest.Contribution
	if err := decodeJSON(w, r, &c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	c.ID = 0
	created, err := s.investments.AddContribution(r.Context(), c)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type holdingRequest struct {
	CurrentValue decimal.Decimal `json:"current_value"`
}

func (s *Server) handleSetHolding(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h, err := s.investments.SetHolding(r.Context(), r.PathValue("type"), req.CurrentValue)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleStartPlan(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.investments.StartPlan(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
