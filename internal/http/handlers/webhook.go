package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"storybot/internal/domain"
	"storybot/internal/telegram"
)

// TelegramWebhook receives bot updates. Wrong-chat callbacks get a 403 and
// malformed tokens a 400; everything else answers 200 promptly, downstream
// failures included, so the transport does not retry-storm the service.
func (a *App) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if update.CallbackQuery == nil {
		// Not a callback; nothing for the approval flow to do.
		a.json(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	err := a.Approvals.HandleCallback(r.Context(), update.CallbackQuery)
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, domain.ErrUnauthorizedChat):
		a.jsonError(w, http.StatusForbidden, "unauthorized chat")
	case errors.Is(err, domain.ErrMalformedCallback):
		a.jsonError(w, http.StatusBadRequest, "malformed callback data")
	default:
		if a.Logger != nil {
			a.Logger.Error().Err(err).Int64("update_id", update.UpdateID).Msg("webhook: callback handling failed")
		}
		a.json(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
