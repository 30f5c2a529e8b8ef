package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"storybot/internal/domain"
)

type enqueueRequest struct {
	SourceURL    string  `json:"source_url"`
	Caption      string  `json:"caption,omitempty"`
	Category     string  `json:"category,omitempty"`
	Product      string  `json:"product,omitempty"`
	Model        string  `json:"model,omitempty"`
	Style        string  `json:"style,omitempty"`
	Faithfulness float64 `json:"faithfulness,omitempty"`
	AspectRatio  string  `json:"aspect_ratio,omitempty"`
	Mode         string  `json:"mode,omitempty"`
	TargetAt     string  `json:"target_at,omitempty"`
	SlotID       string  `json:"slot_id,omitempty"`
}

type itemResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	SourceURL    string     `json:"source_url"`
	EnhancedURL  string     `json:"enhanced_url,omitempty"`
	Caption      string     `json:"caption,omitempty"`
	Category     string     `json:"category,omitempty"`
	Product      string     `json:"product,omitempty"`
	Model        string     `json:"model"`
	Style        string     `json:"style"`
	Faithfulness float64    `json:"faithfulness"`
	AspectRatio  string     `json:"aspect_ratio"`
	Mode         string     `json:"mode"`
	TargetAt     *time.Time `json:"target_at,omitempty"`
	SlotID       string     `json:"slot_id,omitempty"`
	PublishedID  string     `json:"published_id,omitempty"`
	PublishedURL string     `json:"published_url,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toItemResponse(item *domain.QueueItem) itemResponse {
	return itemResponse{
		ID:           item.ID,
		Status:       string(item.Status),
		SourceURL:    item.SourceURL,
		EnhancedURL:  item.EnhancedURL,
		Caption:      item.Caption,
		Category:     item.Category,
		Product:      item.Product,
		Model:        item.Model,
		Style:        item.Style,
		Faithfulness: item.Faithfulness,
		AspectRatio:  item.AspectRatio,
		Mode:         string(item.Mode),
		TargetAt:     item.TargetAt,
		SlotID:       item.SlotID,
		PublishedID:  item.PublishedID,
		PublishedURL: item.PublishedURL,
		LastError:    item.LastError,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

// EnqueueItem is the intake endpoint: validates the payload, applies
// defaults and writes the item in pending.
func (a *App) EnqueueItem(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		a.jsonError(w, http.StatusBadRequest, "source_url is required")
		return
	}

	item := &domain.QueueItem{
		SourceURL:    req.SourceURL,
		Caption:      req.Caption,
		Category:     req.Category,
		Product:      req.Product,
		Model:        req.Model,
		Style:        req.Style,
		Faithfulness: req.Faithfulness,
		AspectRatio:  req.AspectRatio,
		SlotID:       req.SlotID,
	}
	if req.Mode != "" {
		mode := domain.ScheduleMode(req.Mode)
		switch mode {
		case domain.ModeImmediate, domain.ModeScheduled, domain.ModeOptimal:
			item.Mode = mode
		default:
			a.jsonError(w, http.StatusBadRequest, "unknown mode")
			return
		}
	}
	if req.TargetAt != "" {
		target, err := time.Parse(time.RFC3339, req.TargetAt)
		if err != nil {
			a.jsonError(w, http.StatusBadRequest, "target_at must be RFC 3339")
			return
		}
		item.TargetAt = &target
	}

	stored, err := a.Repo.Enqueue(r.Context(), item)
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusCreated, toItemResponse(stored))
}

// GetItem returns one queue item by id.
func (a *App) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := a.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "item not found")
			return
		}
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, toItemResponse(item))
}

// QueueStats reports per-status counts.
func (a *App) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Repo.Stats(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	a.json(w, http.StatusOK, map[string]any{"counts": out})
}
