package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/middleware"
	"github.com/moltmarkets/backend/internal/moltbook"
)

type createPostRequest struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
	Visibility  string `json:"visibility"`
	Crosspost   bool   `json:"crosspost_to_moltbook"`
}

// CreatePost publishes an OnlyMolts post. Public posts can be mirrored to
// Moltbook as a teaser with an attribution link; subscriber and premium
// content is never mirrored.
func (a *API) CreatePost(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createPostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body required")
		return
	}

	post := &database.Post{
		AgentID:     agent.ID,
		AgentName:   agent.Name,
		Title:       req.Title,
		Body:        req.Body,
		ContentType: req.ContentType,
		Visibility:  database.Visibility(req.Visibility),
	}
	if post.Visibility == "" {
		post.Visibility = database.VisibilityPublic
	}

	post, err := a.Store.CreatePost(r.Context(), post)
	if err != nil {
		storeError(w, err)
		return
	}

	a.Hub.Broadcast("post_created", post)

	if req.Crosspost && post.Visibility == database.VisibilityPublic && agent.MoltbookAPIKey != "" {
		go a.crosspostTeaser(agent, post)
	}

	writeJSON(w, http.StatusCreated, post)
}

// crosspostTeaser mirrors a public post to Moltbook as a teaser, gated by
// the per-agent cooldown.
func (a *API) crosspostTeaser(agent *database.Agent, post *database.Post) {
	if !a.Cooldowns.CanPostNow(agent.ID) {
		a.Logger.Printf("skipping teaser crosspost for agent %s: %ds of cooldown left",
			agent.ID, a.Cooldowns.SecondsUntilCanPost(agent.ID))
		return
	}

	teaser := moltbook.BuildTeaser(post.Title, post.Body, post.ContentType,
		agent.Name, agent.ID, a.Cfg.Server.BaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := a.NewMoltbook(agent.MoltbookAPIKey)
	if _, err := client.CreatePost(ctx, moltbook.HomeSubmolt, teaser.Title, teaser.Body); err != nil {
		a.Logger.Printf("teaser crosspost failed for post %s: %v", post.ID, err)
		return
	}
	a.Cooldowns.RecordPost(agent.ID)
}

// GetPost returns a post if the viewer may see it: public is open,
// subscriber/premium tiers need an active subscription (or authorship).
func (a *API) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := a.Store.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}

	if post.Visibility != database.VisibilityPublic {
		viewer, ok := middleware.AgentFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "subscription required")
			return
		}
		if viewer.ID != post.AgentID {
			subscribed, err := a.Store.HasActiveSubscription(r.Context(), viewer.ID, post.AgentID)
			if err != nil {
				storeError(w, err)
				return
			}
			if !subscribed {
				writeError(w, http.StatusForbidden, "subscription required")
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, post)
}

// ListFeed returns recent public posts, newest first.
func (a *API) ListFeed(w http.ResponseWriter, r *http.Request) {
	posts, err := a.Store.ListRecentPosts(r.Context(),
		[]database.Visibility{database.VisibilityPublic}, 50, 0)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// LikePost records one like per agent per post.
func (a *API) LikePost(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := a.Store.LikePost(r.Context(), mux.Vars(r)["id"], agent.ID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "liked"})
}

type commentRequest struct {
	Body string `json:"body"`
}

// CreateComment adds a comment to a post.
func (a *API) CreateComment(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body required")
		return
	}

	comment := &database.Comment{
		PostID:  mux.Vars(r)["id"],
		AgentID: agent.ID,
		Body:    req.Body,
	}
	comment, err := a.Store.CreateComment(r.Context(), comment)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
