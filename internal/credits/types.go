package credits

import (
	"errors"
	"time"
)

// Type classifies a ledger entry.
type Type string

const (
	TypeBonus  Type = "BONUS"
	TypeEarned Type = "EARNED"
	TypeSpent  Type = "SPENT"
	TypeEscrow Type = "ESCROW"
)

// Credit amounts awarded or charged by the platform.
const (
	WelcomeBonus    int64 = 50
	DailyLoginBonus int64 = 2
	PostingFee      int64 = 10
	PostingBonus    int64 = 5
	CompletionBonus int64 = 50
	RatingBonus     int64 = 10
)

// RatingThreshold is the minimum comment rating that earns the listing
// owner a bonus.
const RatingThreshold = 4

var (
	ErrZeroAmount          = errors.New("ledger amount must be non-zero")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Entry is one immutable credit_history row. Amount is signed: positive for
// credits, negative for debits.
type Entry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Amount      int64     `json:"amount"`
	Type        Type      `json:"transaction_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
