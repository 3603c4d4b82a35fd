// Package escrow moves credits between buyer and seller as proposals are
// accepted and orders are completed. All money movement goes through the
// credits ledger inside a single caller-owned transaction.
package escrow

import (
	"context"
	"errors"
	"time"
)

// Listing statuses.
const (
	PostOpen       = "OPEN"
	PostInProgress = "IN_PROGRESS"
	PostCompleted  = "COMPLETED"
	PostCancelled  = "CANCELLED"
)

// Proposal statuses.
const (
	ProposalPending  = "PENDING"
	ProposalAccepted = "ACCEPTED"
	ProposalRejected = "REJECTED"
)

// Order statuses.
const (
	OrderInProgress = "IN_PROGRESS"
	OrderDelivered  = "DELIVERED"
	OrderCompleted  = "COMPLETED"
	OrderCancelled  = "CANCELLED"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrNotOwner         = errors.New("listing does not belong to you")
	ErrNotParticipant   = errors.New("not a party to this order")
	ErrOwnListing       = errors.New("cannot buy your own listing")
	ErrAlreadyAccepted  = errors.New("proposal already handled")
	ErrOrderClosed      = errors.New("order already closed")
)

// Proposal is the slice of a proposals row the escrow opener needs.
type Proposal struct {
	ID      int64
	PostID  int64
	BuyerID int64
	Status  string
}

// Post is the slice of a posts row the escrow engine needs.
type Post struct {
	ID      int64
	OwnerID int64
	Price   int64
	Status  string
}

// Order custodies the escrowed amount from acceptance until release.
// EscrowAmount is fixed at creation and never changed.
type Order struct {
	ID              int64     `json:"id"`
	PostID          int64     `json:"post_id"`
	ProposalID      int64     `json:"proposal_id"`
	BuyerID         int64     `json:"buyer_id"`
	SellerID        int64     `json:"seller_id"`
	EscrowAmount    int64     `json:"escrow_amount"`
	Status          string    `json:"status"`
	BuyerConfirmed  bool      `json:"buyer_confirmed"`
	SellerConfirmed bool      `json:"seller_confirmed"`
	DeliveredFiles  []string  `json:"seller_delivered_files,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProposalStore accesses proposals within the caller's transaction.
type ProposalStore interface {
	// GetForUpdate locks the proposal row for the transaction.
	GetForUpdate(ctx context.Context, id int64) (*Proposal, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// PostStore accesses listings within the caller's transaction.
type PostStore interface {
	Get(ctx context.Context, id int64) (*Post, error)
	SetStatus(ctx context.Context, id int64, status string) error
	// Assign marks the listing IN_PROGRESS and records who it went to.
	Assign(ctx context.Context, id, userID int64) error
}

// OrderStore accesses orders within the caller's transaction.
type OrderStore interface {
	Create(ctx context.Context, o *Order) (int64, error)
	// GetForUpdate locks the order row; two concurrent confirmations
	// serialize on this lock.
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	SetConfirmed(ctx context.Context, id int64, byBuyer bool) error
	Complete(ctx context.Context, id int64) error
}
