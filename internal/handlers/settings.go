package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"procurement/db"
)

// GetSettingHandler обрабатывает GET /api/settings/{key}
func (h *Handler) GetSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		h.respondError(w, http.StatusBadRequest, "missing key")
		return
	}

	setting, err := h.Store.GetSetting(r.Context(), key)
	if err != nil {
		h.respondStorageError(w, err, "setting")
		return
	}
	h.respondData(w, http.StatusOK, setting)
}

// PutSettingHandler обрабатывает PUT /api/settings/{key}
func (h *Handler) PutSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		h.respondError(w, http.StatusBadRequest, "missing key")
		return
	}

	var input struct {
		Value string `json:"value"`
		Type  string `json:"type"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	switch input.Type {
	case "":
		input.Type = "string"
	case "string", "int", "bool":
	default:
		h.respondError(w, http.StatusBadRequest, "type must be string, int or bool")
		return
	}

	setting := &db.SystemSetting{Key: key, Value: input.Value, Type: input.Type}
	if err := h.Store.SetSetting(r.Context(), setting); err != nil {
		h.respondStorageError(w, err, "setting")
		return
	}

	h.audit(r.Context(), currentUser(r), "setting.update", "setting", key, nil)
	h.respondData(w, http.StatusOK, setting)
}
