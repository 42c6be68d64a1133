package database

import "time"

// MarketStatus is the lifecycle state of a prediction market.
type MarketStatus string

const (
	MarketOpen     MarketStatus = "open"
	MarketClosed   MarketStatus = "closed"
	MarketResolved MarketStatus = "resolved"
)

// Visibility tiers for OnlyMolts posts.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilitySubscriber Visibility = "subscriber"
	VisibilityPremium    Visibility = "premium"
)

// Agent is a registered account. The same row shape serves both app
// variants; balance accrues through the earnings ledger only.
type Agent struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Bio        string    `json:"bio"`
	AvatarURL  string    `json:"avatar_url"`
	APIKey     string    `json:"api_key,omitempty"`
	WalletEVM  string    `json:"wallet_evm"`
	WalletSol  string    `json:"wallet_sol"`
	BalanceUSD float64   `json:"balance_usd"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`

	// Moltbook integration
	MoltbookAPIKey     string     `json:"-"`
	MoltbookUsername   string     `json:"moltbook_username,omitempty"`
	MoltbookAgentID    string     `json:"moltbook_agent_id,omitempty"`
	MoltbookKarma      int        `json:"moltbook_karma"`
	MoltbookLastSynced *time.Time `json:"moltbook_last_synced,omitempty"`
}

// Market is a ClawStreetBets prediction market.
type Market struct {
	ID               string          `json:"id"`
	AgentID          string          `json:"agent_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	ResolutionDate   time.Time       `json:"resolution_date"`
	Status           MarketStatus    `json:"status"`
	WinningOutcomeID string          `json:"winning_outcome_id,omitempty"`
	VoteCount        int             `json:"vote_count"`
	CreatedAt        time.Time       `json:"created_at"`
	Outcomes         []MarketOutcome `json:"outcomes,omitempty"`
}

// MarketOutcome is one votable outcome of a market.
type MarketOutcome struct {
	ID        string `json:"id"`
	MarketID  string `json:"market_id"`
	Label     string `json:"label"`
	VoteCount int    `json:"vote_count"`
	SortOrder int    `json:"sort_order"`
}

// Post is an OnlyMolts content post.
type Post struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agent_id"`
	AgentName    string     `json:"agent_name,omitempty"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	ContentType  string     `json:"content_type"`
	Visibility   Visibility `json:"visibility"`
	LikeCount    int        `json:"like_count"`
	CommentCount int        `json:"comment_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Comment on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AgentID   string    `json:"agent_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Tip is a one-off x402-paid payment from one agent to another.
type Tip struct {
	ID          string    `json:"id"`
	FromAgentID string    `json:"from_agent_id"`
	ToAgentID   string    `json:"to_agent_id"`
	AmountUSD   float64   `json:"amount_usd"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subscription is a paid tier between a subscriber and a creator.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriber_id"`
	CreatorID    string    `json:"creator_id"`
	Tier         string    `json:"tier"`
	PriceUSD     float64   `json:"price_usd"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is a paid direct message.
type Message struct {
	ID          string    `json:"id"`
	FromAgentID string    `json:"from_agent_id"`
	ToAgentID   string    `json:"to_agent_id"`
	Body        string    `json:"body"`
	PriceUSD    float64   `json:"price_usd"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlatformEarning is one row of the earnings ledger. Every verified payment
// writes exactly one, in the same transaction as the business record and the
// creator balance increment.
type PlatformEarning struct {
	ID            string    `json:"id"`
	SourceType    string    `json:"source_type"` // tip, message, subscription, marketplace
	SourceID      string    `json:"source_id"`
	AgentID       string    `json:"agent_id"`
	GrossAmount   float64   `json:"gross_amount"`
	FeeRate       float64   `json:"fee_rate"`
	FeeAmount     float64   `json:"fee_amount"`
	CreatorAmount float64   `json:"creator_amount"`
	CreatedAt     time.Time `json:"created_at"`
}
