package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// GetSetting returns the current value for a runtime setting key.
func (a *App) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := a.Settings.Get(r.Context(), key)
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

// PutSetting updates a runtime setting; the change takes effect once the
// settings cache expires.
func (a *App) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(body.Value) == "" {
		a.jsonError(w, http.StatusBadRequest, "value is required")
		return
	}
	if err := a.Settings.Set(r.Context(), key, body.Value); err != nil {
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]string{"key": key, "value": body.Value})
}
