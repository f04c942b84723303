package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trackgate/trackgate/pkg/httputil"
	"github.com/trackgate/trackgate/pkg/middleware"
	"github.com/trackgate/trackgate/pkg/tracking"
)

// TrackingHandlers proxies tenant-scoped reads and training kickoff to the
// tenant's tracking backend. The backend connection comes from the scoped
// tenant in context and nowhere else.
type TrackingHandlers struct {
	client tracking.Client
}

// NewTrackingHandlers creates the handlers.
func NewTrackingHandlers(client tracking.Client) *TrackingHandlers {
	return &TrackingHandlers{client: client}
}

func (h *TrackingHandlers) config(w http.ResponseWriter, r *http.Request) (tracking.ClientConfig, bool) {
	cfg, err := tracking.ConfigFor(middleware.TenantFromContext(r.Context()))
	if err != nil {
		httputil.WriteBadRequest(w, "no tenant in scope")
		return tracking.ClientConfig{}, false
	}
	return cfg, true
}

// ListExperiments handles GET /experiments.
func (h *TrackingHandlers) ListExperiments(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.config(w, r)
	if !ok {
		return
	}
	experiments, err := h.client.ListExperiments(r.Context(), cfg)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "tracking backend unavailable")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"experiments": experiments})
}

// ListRuns handles GET /experiments/{id}/runs.
func (h *TrackingHandlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.config(w, r)
	if !ok {
		return
	}
	runs, err := h.client.ListRuns(r.Context(), cfg, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "tracking backend unavailable")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"runs": runs})
}

// ListModels handles GET /models.
func (h *TrackingHandlers) ListModels(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.config(w, r)
	if !ok {
		return
	}
	models, err := h.client.ListModels(r.Context(), cfg)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "tracking backend unavailable")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"models": models})
}

// Train handles POST /train. Admin gating happens in the route chain via
// middleware.RequireOperation.
func (h *TrackingHandlers) Train(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.config(w, r)
	if !ok {
		return
	}

	var req tracking.TrainRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ExperimentName == "" {
		httputil.WriteBadRequest(w, "experiment_name is required")
		return
	}

	job, err := h.client.SubmitTraining(r.Context(), cfg, req)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "failed to submit training job")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, job)
}
