package handlers

import (
	"net/http"
	"time"

	"github.com/moltmarkets/backend/internal/middleware"
	"github.com/moltmarkets/backend/internal/moltbook"
)

type moltbookLinkRequest struct {
	MoltbookAPIKey string `json:"moltbook_api_key"`
}

// LinkMoltbook verifies a Moltbook API key by fetching the profile it
// belongs to, then stores the link on the agent.
func (a *API) LinkMoltbook(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req moltbookLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MoltbookAPIKey == "" {
		writeError(w, http.StatusBadRequest, "moltbook_api_key required")
		return
	}

	client := a.NewMoltbook(req.MoltbookAPIKey)
	profile, err := client.GetProfile(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not verify Moltbook key: "+err.Error())
		return
	}

	username := profile.Name
	if username == "" {
		username = profile.Username
	}
	if username == "" {
		writeError(w, http.StatusBadRequest, "Moltbook key is valid but returned no username")
		return
	}

	if err := a.Store.UpdateMoltbookLink(r.Context(), agent.ID,
		req.MoltbookAPIKey, username, profile.ID, profile.Karma); err != nil {
		storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"linked":            true,
		"moltbook_username": username,
		"moltbook_agent_id": profile.ID,
	})
}

// UnlinkMoltbook removes the Moltbook integration from the agent.
func (a *API) UnlinkMoltbook(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := a.Store.ClearMoltbookLink(r.Context(), agent.ID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unlinked": true})
}

// moltbookStatsStaleAfter is how old cached stats may get before a refresh.
const moltbookStatsStaleAfter = time.Hour

// MoltbookStats returns cached Moltbook stats, refreshing from Moltbook when
// stale. Refresh failures keep the cached values; stats are best-effort.
func (a *API) MoltbookStats(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if agent.MoltbookAPIKey == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"linked": false})
		return
	}

	stale := agent.MoltbookLastSynced == nil ||
		time.Since(*agent.MoltbookLastSynced) > moltbookStatsStaleAfter
	if stale {
		client := a.NewMoltbook(agent.MoltbookAPIKey)
		if profile, err := client.GetProfile(r.Context()); err == nil {
			if profile.Name != "" {
				agent.MoltbookUsername = profile.Name
			}
			agent.MoltbookKarma = profile.Karma
			if err := a.Store.UpdateMoltbookLink(r.Context(), agent.ID,
				agent.MoltbookAPIKey, agent.MoltbookUsername,
				agent.MoltbookAgentID, agent.MoltbookKarma); err != nil {
				a.Logger.Printf("failed to persist refreshed moltbook stats: %v", err)
			}
		}
	}

	var profileURL string
	if agent.MoltbookUsername != "" {
		profileURL = moltbook.SiteURL + "/agent/" + agent.MoltbookUsername
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"linked":               true,
		"moltbook_username":    agent.MoltbookUsername,
		"moltbook_agent_id":    agent.MoltbookAgentID,
		"moltbook_karma":       agent.MoltbookKarma,
		"moltbook_last_synced": agent.MoltbookLastSynced,
		"profile_url":          profileURL,
	})
}

// SetupMoltbookPresence bootstraps the platform's Moltbook presence with the
// platform account key. Admin/ops endpoint; idempotent.
func (a *API) SetupMoltbookPresence(w http.ResponseWriter, r *http.Request) {
	if a.Cfg.Moltbook.APIKey == "" {
		writeError(w, http.StatusServiceUnavailable, "platform Moltbook key not configured")
		return
	}

	client := a.NewMoltbook(a.Cfg.Moltbook.APIKey)
	result := client.SetupPresence(r.Context(), a.Cfg.Server.BaseURL)
	writeJSON(w, http.StatusOK, result)
}

// CrosspostCooldown reports the agent's remaining outbound-post cooldown.
func (a *API) CrosspostCooldown(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"can_post_now":  a.Cooldowns.CanPostNow(agent.ID),
		"seconds_until": a.Cooldowns.SecondsUntilCanPost(agent.ID),
	})
}
