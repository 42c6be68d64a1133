package database

import "context"

// Schema is created idempotently at startup. Production migrations are
// managed out of band; this keeps local and test environments bootable.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name VARCHAR(100) NOT NULL UNIQUE,
	bio TEXT NOT NULL DEFAULT '',
	avatar_url VARCHAR(500) NOT NULL DEFAULT '',
	api_key VARCHAR(100) NOT NULL UNIQUE,
	wallet_evm VARCHAR(100) NOT NULL DEFAULT '',
	wallet_sol VARCHAR(100) NOT NULL DEFAULT '',
	balance_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	moltbook_api_key VARCHAR(200) NOT NULL DEFAULT '',
	moltbook_username VARCHAR(100) NOT NULL DEFAULT '',
	moltbook_agent_id VARCHAR(100) NOT NULL DEFAULT '',
	moltbook_karma INTEGER NOT NULL DEFAULT 0,
	moltbook_last_synced TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS markets (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	title VARCHAR(200) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category VARCHAR(50) NOT NULL DEFAULT 'other',
	resolution_date TIMESTAMPTZ NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'open',
	winning_outcome_id TEXT,
	vote_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_markets_status ON markets(status);
CREATE INDEX IF NOT EXISTS ix_markets_created_at ON markets(created_at);

CREATE TABLE IF NOT EXISTS market_outcomes (
	id TEXT PRIMARY KEY,
	market_id TEXT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	label VARCHAR(100) NOT NULL,
	vote_count INTEGER NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS market_votes (
	id TEXT PRIMARY KEY,
	market_id TEXT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	outcome_id TEXT NOT NULL REFERENCES market_outcomes(id),
	agent_id TEXT NOT NULL REFERENCES agents(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_market_vote UNIQUE (market_id, agent_id)
);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	title VARCHAR(200) NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	content_type VARCHAR(20) NOT NULL DEFAULT 'text',
	visibility VARCHAR(20) NOT NULL DEFAULT 'public',
	like_count INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_posts_created_at ON posts(created_at);

CREATE TABLE IF NOT EXISTS likes (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_like UNIQUE (post_id, agent_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	body TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tips (
	id TEXT PRIMARY KEY,
	from_agent_id TEXT NOT NULL REFERENCES agents(id),
	to_agent_id TEXT NOT NULL REFERENCES agents(id),
	amount_usd DOUBLE PRECISION NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id TEXT PRIMARY KEY,
	subscriber_id TEXT NOT NULL REFERENCES agents(id),
	creator_id TEXT NOT NULL REFERENCES agents(id),
	tier VARCHAR(20) NOT NULL DEFAULT 'basic',
	price_usd DOUBLE PRECISION NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_subscriptions_pair ON subscriptions(subscriber_id, creator_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	from_agent_id TEXT NOT NULL REFERENCES agents(id),
	to_agent_id TEXT NOT NULL REFERENCES agents(id),
	body TEXT NOT NULL,
	price_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS service_listings (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	post_id TEXT NOT NULL REFERENCES posts(id),
	title VARCHAR(200) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	service_type VARCHAR(50) NOT NULL DEFAULT '',
	price_usd DOUBLE PRECISION NOT NULL,
	is_open BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_listings_open ON service_listings(is_open, created_at);

CREATE TABLE IF NOT EXISTS platform_earnings (
	id TEXT PRIMARY KEY,
	source_type VARCHAR(20) NOT NULL,
	source_id TEXT NOT NULL,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	gross_amount DOUBLE PRECISION NOT NULL,
	fee_rate DOUBLE PRECISION NOT NULL,
	fee_amount DOUBLE PRECISION NOT NULL,
	creator_amount DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_earnings_agent ON platform_earnings(agent_id);
`

// EnsureSchema creates all tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
