package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/applypilot/applypilot/internal/campaign"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request) {
	var profile campaign.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decoding profile: %v", err)})
		return
	}

	profile.UserID = chi.URLParam(r, "userID")
	profile.Normalize()

	saved, err := h.profiles.UpsertProfile(r.Context(), &profile)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, campaigns)
}

type createCampaignRequest struct {
	DurationDays          int `json:"duration_days"`
	MaxApplicationsPerDay int `json:"max_applications_per_day"`
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decoding request: %v", err)})
		return
	}

	userID := chi.URLParam(r, "userID")

	// Nothing is persisted when the profile cannot back a campaign.
	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	c, err := campaign.New(profile, req.DurationDays, req.MaxApplicationsPerDay, time.Now())
	if errors.Is(err, campaign.ErrProfileIncomplete) {
		h.writeError(w, err)
		return
	}
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := h.campaigns.Create(r.Context(), c); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("user_id", userID),
		zap.Int("duration_days", c.Duration),
		zap.Int("max_per_day", c.MaxPerDay),
	)

	h.writeJSON(w, http.StatusCreated, c)
}

type updateStatusRequest struct {
	Status campaign.Status `json:"status"`
}

func (h *Handler) updateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decoding request: %v", err)})
		return
	}

	campaignID := chi.URLParam(r, "campaignID")
	if err := h.campaigns.UpdateStatus(r.Context(), campaignID, req.Status); err != nil {
		h.writeError(w, err)
		return
	}

	updated, err := h.campaigns.Get(r.Context(), campaignID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.ledger.ListByCampaign(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) runNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.trigger.RunNow(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}
