// Package httpapi exposes the platform's REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	app "github.com/appforge/platform/internal/app"
	appdomain "github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/metrics"
	"github.com/appforge/platform/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Route("/apps", func(r chi.Router) {
		r.Post("/", h.createApp)
		r.Get("/", h.listApps)
		r.Route("/{appID}", func(r chi.Router) {
			r.Get("/", h.getApp)
			r.Post("/deploy", h.deployApp)
			r.Post("/provision", h.provisionApp)
		})
	})
	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func (h *handler) createApp(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TeamID string `json:"team_id"`
		Slug   string `json:"slug"`
		Name   string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Apps.Create(r.Context(), payload.TeamID, payload.Slug, payload.Name)
	if err != nil {
		if errors.Is(err, storage.ErrSlugTaken) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listApps(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Apps.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getApp(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookupApp(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) deployApp(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookupApp(w, r)
	if !ok {
		return
	}

	var payload struct {
		Environment string            `json:"environment"`
		EnvVars     map[string]string `json:"env_vars"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	env := appdomain.Environment(payload.Environment)
	if !env.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("environment must be staging or production"))
		return
	}

	result := h.app.Deploy.Deploy(r.Context(), a, env, payload.EnvVars)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (h *handler) provisionApp(w http.ResponseWriter, r *http.Request) {
	if h.app.Provisioner == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("schema provisioning is not configured"))
		return
	}
	a, ok := h.lookupApp(w, r)
	if !ok {
		return
	}

	var payload struct {
		Source string `json:"source"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Source == "" {
		writeError(w, http.StatusBadRequest, errors.New("source is required"))
		return
	}

	result := h.app.Provisioner.Provision(r.Context(), a, payload.Source)
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) lookupApp(w http.ResponseWriter, r *http.Request) (appdomain.App, bool) {
	id := chi.URLParam(r, "appID")
	a, err := h.app.Apps.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAppNotFound) {
			writeError(w, http.StatusNotFound, err)
		} else {
			writeError(w, http.StatusInternalServerError, err)
		}
		return appdomain.App{}, false
	}
	return a, true
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
