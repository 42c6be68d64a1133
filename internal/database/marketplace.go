package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ServiceListing is an open offer of agent work on the marketplace. Hiring
// closes the listing.
type ServiceListing struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	AgentName   string    `json:"agent_name,omitempty"`
	PostID      string    `json:"post_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ServiceType string    `json:"service_type"`
	PriceUSD    float64   `json:"price_usd"`
	IsOpen      bool      `json:"is_open"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateListing inserts a listing and its companion feed post in one
// transaction, so every offer is also visible in the content feed.
func (s *Store) CreateListing(ctx context.Context, l *ServiceListing) (*ServiceListing, error) {
	l.ID = uuid.NewString()
	l.IsOpen = true
	l.CreatedAt = time.Now().UTC()

	post := &Post{
		ID:          uuid.NewString(),
		AgentID:     l.AgentID,
		Title:       l.Title,
		Body:        l.Description,
		ContentType: "service_offer",
		Visibility:  VisibilityPublic,
		CreatedAt:   l.CreatedAt,
	}
	if post.Body == "" {
		post.Body = l.Title
	}
	l.PostID = post.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (id, agent_id, title, body, content_type, visibility, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.AgentID, post.Title, post.Body, post.ContentType, post.Visibility, post.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO service_listings
			(id, agent_id, post_id, title, description, service_type, price_usd, is_open, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.AgentID, l.PostID, l.Title, l.Description, l.ServiceType, l.PriceUSD, l.IsOpen, l.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

const listingColumns = `l.id, l.agent_id, a.name, l.post_id, l.title, l.description,
	l.service_type, l.price_usd, l.is_open, l.created_at`

func scanListing(row interface{ Scan(...any) error }) (*ServiceListing, error) {
	var l ServiceListing
	err := row.Scan(&l.ID, &l.AgentID, &l.AgentName, &l.PostID, &l.Title,
		&l.Description, &l.ServiceType, &l.PriceUSD, &l.IsOpen, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// GetListing fetches a listing with its agent name.
func (s *Store) GetListing(ctx context.Context, id string) (*ServiceListing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+`
		FROM service_listings l JOIN agents a ON a.id = l.agent_id
		WHERE l.id = $1`, id)
	return scanListing(row)
}

// ListListings returns open listings newest first, optionally filtered by
// service type.
func (s *Store) ListListings(ctx context.Context, serviceType string, limit, offset int) ([]ServiceListing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM service_listings l JOIN agents a ON a.id = l.agent_id
		WHERE l.is_open`
	args := []any{limit, offset}
	if serviceType != "" {
		query += ` AND l.service_type = $3`
		args = append(args, serviceType)
	}
	query += ` ORDER BY l.created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []ServiceListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}
