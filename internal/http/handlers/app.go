// Package handlers holds the HTTP entry points: the bot webhook, pipeline
// triggers, queue intake and inspection, and runtime settings.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"storybot/internal/domain"
	"storybot/internal/infra"
	"storybot/internal/pipeline"
	"storybot/internal/telegram"
)

// CallbackHandler resolves inbound bot callback actions.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, cb *telegram.CallbackQuery) error
}

// Processor runs the pipeline.
type Processor interface {
	ProcessNextItem(ctx context.Context, opts pipeline.ProcessOptions) (*pipeline.Result, error)
	ProcessAllPending(ctx context.Context) (*pipeline.BatchResult, error)
}

// ReaperRunner performs one timeout sweep.
type ReaperRunner interface {
	Run(ctx context.Context) (int, error)
}

// SettingsStore reads and writes runtime-tunable settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// App wires the handlers to their collaborators.
type App struct {
	Repo      domain.QueueRepository
	Approvals CallbackHandler
	Pipeline  Processor
	Reaper    ReaperRunner
	Settings  SettingsStore
	Logger    *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
