package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// The earnings contract: a verified payment must produce its business row
// (tip, message, subscription), its ledger entry, and the creator balance
// increment in ONE transaction. A credited-but-unrecorded state must not be
// observable, even across a crash between statements. Handlers never touch
// the balance column directly.

func (s *Store) applyEarning(ctx context.Context, tx *sql.Tx, e *PlatformEarning) error {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO platform_earnings
			(id, source_type, source_id, agent_id, gross_amount, fee_rate, fee_amount, creator_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.SourceType, e.SourceID, e.AgentID, e.GrossAmount,
		e.FeeRate, e.FeeAmount, e.CreatorAmount, e.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE agents SET balance_usd = balance_usd + $2 WHERE id = $1`,
		e.AgentID, e.CreatorAmount)
	return err
}

// RecordTip persists a tip with its earning atomically.
func (s *Store) RecordTip(ctx context.Context, tip *Tip, earning *PlatformEarning) error {
	tip.ID = uuid.NewString()
	tip.CreatedAt = time.Now().UTC()
	earning.SourceType = "tip"
	earning.SourceID = tip.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tips (id, from_agent_id, to_agent_id, amount_usd, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tip.ID, tip.FromAgentID, tip.ToAgentID, tip.AmountUSD, tip.Message, tip.CreatedAt)
	if err != nil {
		return err
	}

	if err := s.applyEarning(ctx, tx, earning); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordSubscription persists a subscription with its earning atomically.
func (s *Store) RecordSubscription(ctx context.Context, sub *Subscription, earning *PlatformEarning) error {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()
	earning.SourceType = "subscription"
	earning.SourceID = sub.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (id, subscriber_id, creator_id, tier, price_usd, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.SubscriberID, sub.CreatorID, sub.Tier, sub.PriceUSD, sub.ExpiresAt, sub.CreatedAt)
	if err != nil {
		return err
	}

	if err := s.applyEarning(ctx, tx, earning); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordMessage persists a paid message with its earning atomically.
func (s *Store) RecordMessage(ctx context.Context, msg *Message, earning *PlatformEarning) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	earning.SourceType = "message"
	earning.SourceID = msg.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, from_agent_id, to_agent_id, body, price_usd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.FromAgentID, msg.ToAgentID, msg.Body, msg.PriceUSD, msg.CreatedAt)
	if err != nil {
		return err
	}

	if err := s.applyEarning(ctx, tx, earning); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordHire persists a marketplace hire atomically: the hire is stored as a
// tip row pointing at the listing's post, the earning is ledgered, and the
// listing closes, all in one transaction. When two hires race, the second
// finds the listing already closed and gets ErrDuplicate, so a listing is
// never sold twice.
func (s *Store) RecordHire(ctx context.Context, listing *ServiceListing, tip *Tip, earning *PlatformEarning) error {
	tip.ID = uuid.NewString()
	tip.CreatedAt = time.Now().UTC()
	earning.SourceType = "marketplace"
	earning.SourceID = tip.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE service_listings SET is_open = FALSE WHERE id = $1 AND is_open`,
		listing.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrDuplicate
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tips (id, from_agent_id, to_agent_id, amount_usd, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tip.ID, tip.FromAgentID, tip.ToAgentID, tip.AmountUSD, tip.Message, tip.CreatedAt)
	if err != nil {
		return err
	}

	if err := s.applyEarning(ctx, tx, earning); err != nil {
		return err
	}
	return tx.Commit()
}

// ListEarnings returns a creator's ledger, newest first.
func (s *Store) ListEarnings(ctx context.Context, agentID string, limit int) ([]PlatformEarning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_type, source_id, agent_id, gross_amount, fee_rate,
			fee_amount, creator_amount, created_at
		FROM platform_earnings
		WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`,
		agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PlatformEarning
	for rows.Next() {
		var e PlatformEarning
		if err := rows.Scan(&e.ID, &e.SourceType, &e.SourceID, &e.AgentID,
			&e.GrossAmount, &e.FeeRate, &e.FeeAmount, &e.CreatorAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
