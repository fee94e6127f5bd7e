package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
	"github.com/JeanGrijp/admission-control/internal/core/services"
)

// AdminHandler expõe a superfície administrativa do limiter: consulta de
// status (somente leitura), reset de contadores e reload das políticas.
type AdminHandler struct {
	svc *services.AdmissionService

	// loadSet relê a configuração do ambiente para o reload.
	loadSet func() (domain.PolicySet, error)
}

func NewAdminHandler(svc *services.AdmissionService, loadSet func() (domain.PolicySet, error)) *AdminHandler {
	return &AdminHandler{svc: svc, loadSet: loadSet}
}

// Routes monta as rotas administrativas.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.Status)
	r.Post("/reset", h.Reset)
	r.Post("/reload", h.Reload)
	return r
}

func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	catName := strings.TrimSpace(r.URL.Query().Get("category"))
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if catName == "" || key == "" {
		writeError(w, http.StatusBadRequest, "category and key query parameters are required")
		return
	}

	cat, err := domain.ParseCategory(catName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.svc.Status(r.Context(), cat, key, r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read counter status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var cats []domain.Category
	if catName := strings.TrimSpace(r.URL.Query().Get("category")); catName != "" {
		cat, err := domain.ParseCategory(catName)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cats = append(cats, cat)
	}

	if err := h.svc.Reset(r.Context(), cats...); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset counters")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload relê as políticas do ambiente e troca o conjunto ativo
// atomicamente. Os contadores não são tocados.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	set, err := h.loadSet()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load policies: "+err.Error())
		return
	}
	if err := h.svc.Registry().Reload(set); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
