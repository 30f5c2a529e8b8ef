package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"storybot/internal/pipeline"
)

type processRequest struct {
	ItemID      string `json:"item_id,omitempty"`
	SkipEnhance bool   `json:"skip_enhance,omitempty"`
}

// ProcessNext triggers one pipeline run, optionally targeting an item.
func (a *App) ProcessNext(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.jsonError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}

	result, err := a.Pipeline.ProcessNextItem(r.Context(), pipeline.ProcessOptions{
		ItemID:      req.ItemID,
		SkipEnhance: req.SkipEnhance,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQueue) {
			a.json(w, http.StatusOK, map[string]any{"processed": false, "reason": "queue empty"})
			return
		}
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, result)
}

// ProcessAll drains the pending queue.
func (a *App) ProcessAll(w http.ResponseWriter, r *http.Request) {
	batch, err := a.Pipeline.ProcessAllPending(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, batch)
}

// RunReaper performs one timeout sweep on demand.
func (a *App) RunReaper(w http.ResponseWriter, r *http.Request) {
	reaped, err := a.Reaper.Run(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]int{"reaped": reaped})
}
