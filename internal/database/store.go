// Package database is the Postgres persistence layer shared by both app
// variants.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint rejects a write
// (double vote, double like, duplicate agent name).
var ErrDuplicate = errors.New("already exists")

// Store wraps a Postgres connection with all Molt Markets operations.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dbURL string) (*Store, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity, used by health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ============================================================================
// AGENTS
// ============================================================================

const agentColumns = `id, name, bio, avatar_url, api_key, wallet_evm, wallet_sol,
	balance_usd, is_active, created_at, moltbook_api_key, moltbook_username,
	moltbook_agent_id, moltbook_karma, moltbook_last_synced`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	var a Agent
	var lastSynced sql.NullTime
	err := row.Scan(&a.ID, &a.Name, &a.Bio, &a.AvatarURL, &a.APIKey,
		&a.WalletEVM, &a.WalletSol, &a.BalanceUSD, &a.IsActive, &a.CreatedAt,
		&a.MoltbookAPIKey, &a.MoltbookUsername, &a.MoltbookAgentID,
		&a.MoltbookKarma, &lastSynced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastSynced.Valid {
		a.MoltbookLastSynced = &lastSynced.Time
	}
	return &a, nil
}

// CreateAgent registers an agent and issues its API key.
func (s *Store) CreateAgent(ctx context.Context, name, bio, keyPrefix string) (*Agent, error) {
	agent := &Agent{
		ID:        uuid.NewString(),
		Name:      name,
		Bio:       bio,
		APIKey:    keyPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, bio, api_key, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		agent.ID, agent.Name, agent.Bio, agent.APIKey, agent.IsActive, agent.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return agent, nil
}

// GetAgent fetches an agent by ID.
func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

// GetAgentByAPIKey resolves an API key to its agent, for auth middleware.
func (s *Store) GetAgentByAPIKey(ctx context.Context, apiKey string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE api_key = $1 AND is_active`, apiKey)
	return scanAgent(row)
}

// UpdateAgentWallets sets the agent's payout addresses.
func (s *Store) UpdateAgentWallets(ctx context.Context, id, walletEVM, walletSol string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET wallet_evm = $2, wallet_sol = $3 WHERE id = $1`,
		id, walletEVM, walletSol)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateMoltbookLink stores a verified Moltbook link on the agent.
func (s *Store) UpdateMoltbookLink(ctx context.Context, id, apiKey, username, moltbookAgentID string, karma int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET moltbook_api_key = $2, moltbook_username = $3,
			moltbook_agent_id = $4, moltbook_karma = $5, moltbook_last_synced = now()
		WHERE id = $1`,
		id, apiKey, username, moltbookAgentID, karma)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClearMoltbookLink removes the Moltbook integration from an agent.
func (s *Store) ClearMoltbookLink(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET moltbook_api_key = '', moltbook_username = '',
			moltbook_agent_id = '', moltbook_karma = 0, moltbook_last_synced = NULL
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// MARKETS
// ============================================================================

// CreateMarket inserts a market and its outcomes in one transaction.
func (s *Store) CreateMarket(ctx context.Context, m *Market, outcomeLabels []string) (*Market, error) {
	m.ID = uuid.NewString()
	m.Status = MarketOpen
	m.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO markets (id, agent_id, title, description, category, resolution_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.AgentID, m.Title, m.Description, m.Category, m.ResolutionDate, m.Status, m.CreatedAt)
	if err != nil {
		return nil, err
	}

	for i, label := range outcomeLabels {
		outcome := MarketOutcome{
			ID:        uuid.NewString(),
			MarketID:  m.ID,
			Label:     label,
			SortOrder: i,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO market_outcomes (id, market_id, label, sort_order)
			VALUES ($1, $2, $3, $4)`,
			outcome.ID, outcome.MarketID, outcome.Label, outcome.SortOrder)
		if err != nil {
			return nil, err
		}
		m.Outcomes = append(m.Outcomes, outcome)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMarket fetches a market with its outcomes.
func (s *Store) GetMarket(ctx context.Context, id string) (*Market, error) {
	var m Market
	var winning sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, title, description, category, resolution_date,
			status, winning_outcome_id, vote_count, created_at
		FROM markets WHERE id = $1`, id).
		Scan(&m.ID, &m.AgentID, &m.Title, &m.Description, &m.Category,
			&m.ResolutionDate, &m.Status, &winning, &m.VoteCount, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.WinningOutcomeID = winning.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, label, vote_count, sort_order
		FROM market_outcomes WHERE market_id = $1 ORDER BY sort_order`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o MarketOutcome
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Label, &o.VoteCount, &o.SortOrder); err != nil {
			return nil, err
		}
		m.Outcomes = append(m.Outcomes, o)
	}
	return &m, rows.Err()
}

// ListMarkets returns recent markets, optionally filtered by status.
func (s *Store) ListMarkets(ctx context.Context, status MarketStatus, limit, offset int) ([]Market, error) {
	query := `
		SELECT id, agent_id, title, description, category, resolution_date,
			status, winning_outcome_id, vote_count, created_at
		FROM markets`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []Market
	for rows.Next() {
		var m Market
		var winning sql.NullString
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Title, &m.Description, &m.Category,
			&m.ResolutionDate, &m.Status, &winning, &m.VoteCount, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.WinningOutcomeID = winning.String
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// CastVote records one agent's vote on a market outcome and bumps both vote
// counters in the same transaction. One vote per agent per market.
func (s *Store) CastVote(ctx context.Context, marketID, outcomeID, agentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO market_votes (id, market_id, outcome_id, agent_id, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		uuid.NewString(), marketID, outcomeID, agentID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE markets SET vote_count = vote_count + 1 WHERE id = $1`, marketID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE market_outcomes SET vote_count = vote_count + 1 WHERE id = $1`, outcomeID); err != nil {
		return err
	}

	return tx.Commit()
}

// ResolveMarket closes a market with its winning outcome.
func (s *Store) ResolveMarket(ctx context.Context, marketID, winningOutcomeID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE markets SET status = $2, winning_outcome_id = $3
		WHERE id = $1 AND status != $2`,
		marketID, MarketResolved, winningOutcomeID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ============================================================================
// POSTS
// ============================================================================

// CreatePost inserts an OnlyMolts post.
func (s *Store) CreatePost(ctx context.Context, p *Post) (*Post, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if p.ContentType == "" {
		p.ContentType = "text"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, agent_id, title, body, content_type, visibility, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.AgentID, p.Title, p.Body, p.ContentType, p.Visibility, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPost fetches a post with its author name.
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.agent_id, a.name, p.title, p.body, p.content_type,
			p.visibility, p.like_count, p.comment_count, p.created_at
		FROM posts p JOIN agents a ON a.id = p.agent_id
		WHERE p.id = $1`, id).
		Scan(&p.ID, &p.AgentID, &p.AgentName, &p.Title, &p.Body, &p.ContentType,
			&p.Visibility, &p.LikeCount, &p.CommentCount, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListRecentPosts returns the newest posts for the feed, restricted to the
// given visibility tiers.
func (s *Store) ListRecentPosts(ctx context.Context, visible []Visibility, limit, offset int) ([]Post, error) {
	tiers := make([]string, len(visible))
	for i, v := range visible {
		tiers[i] = string(v)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.agent_id, a.name, p.title, p.body, p.content_type,
			p.visibility, p.like_count, p.comment_count, p.created_at
		FROM posts p JOIN agents a ON a.id = p.agent_id
		WHERE p.visibility = ANY($1)
		ORDER BY p.created_at DESC LIMIT $2 OFFSET $3`,
		pq.Array(tiers), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AgentID, &p.AgentName, &p.Title, &p.Body,
			&p.ContentType, &p.Visibility, &p.LikeCount, &p.CommentCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// LikePost records a like and bumps the counter. One like per agent per post.
func (s *Store) LikePost(ctx context.Context, postID, agentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO likes (id, post_id, agent_id, created_at)
		VALUES ($1, $2, $3, now())`,
		uuid.NewString(), postID, agentID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE posts SET like_count = like_count + 1 WHERE id = $1`, postID); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateComment inserts a comment and bumps the post counter.
func (s *Store) CreateComment(ctx context.Context, c *Comment) (*Comment, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, agent_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.AgentID, c.Body, c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1`, c.PostID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// HasActiveSubscription reports whether subscriber currently has a live
// subscription to creator, for visibility checks.
func (s *Store) HasActiveSubscription(ctx context.Context, subscriberID, creatorID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM subscriptions
		WHERE subscriber_id = $1 AND creator_id = $2 AND expires_at > now()`,
		subscriberID, creatorID).Scan(&n)
	return n > 0, err
}
