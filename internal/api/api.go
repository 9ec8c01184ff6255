// Package api exposes the campaign management surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/applypilot/applypilot/internal/campaign"
	"github.com/applypilot/applypilot/internal/runner"
	"github.com/applypilot/applypilot/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Trigger is the runner surface the API drives.
type Trigger interface {
	RunNow(ctx context.Context) (*runner.Result, error)
}

type Handler struct {
	profiles  store.ProfileStore
	campaigns store.CampaignStore
	ledger    store.ApplicationStore
	trigger   Trigger
	logger    *zap.Logger
	router    chi.Router
}

func NewHandler(profiles store.ProfileStore, campaigns store.CampaignStore, ledger store.ApplicationStore, trigger Trigger, logger *zap.Logger) *Handler {
	h := &Handler{
		profiles:  profiles,
		campaigns: campaigns,
		ledger:    ledger,
		trigger:   trigger,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users/{userID}/profile", h.getProfile)
		r.Put("/users/{userID}/profile", h.upsertProfile)

		r.Get("/users/{userID}/campaigns", h.listCampaigns)
		r.Post("/users/{userID}/campaigns", h.createCampaign)

		r.Patch("/campaigns/{campaignID}/status", h.updateCampaignStatus)
		r.Delete("/campaigns/{campaignID}", h.deleteCampaign)
		r.Get("/campaigns/{campaignID}/applications", h.listApplications)

		r.Post("/runner/run", h.runNow)
	})
	h.router = r

	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("encoding response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrProfileNotFound),
		errors.Is(err, store.ErrCampaignNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, campaign.ErrProfileIncomplete):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, campaign.ErrInvalidTransition):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.Warn("request failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
