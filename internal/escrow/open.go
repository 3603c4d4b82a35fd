package escrow

import (
	"context"
	"fmt"

	"github.com/skillswap/backend/internal/credits"
)

// Opener accepts a proposal on behalf of the seller: it debits the buyer's
// balance into escrow and creates the order. All stores must be bound to the
// same transaction.
type Opener struct {
	Proposals ProposalStore
	Posts     PostStore
	Orders    OrderStore
	Ledger    credits.Store
}

// Accept transitions the proposal to ACCEPTED, debits the buyer by the
// listing price (ESCROW entry), and creates an IN_PROGRESS order holding the
// amount. Free listings open escrow of 0 with no ledger entry.
//
// The buyer's balance is read under a row lock in the same transaction as
// the debit, so two concurrent acceptances against one buyer cannot both
// pass the check.
func (o *Opener) Accept(ctx context.Context, proposalID, sellerID int64) (*Order, error) {
	pr, err := o.Proposals.GetForUpdate(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if pr.Status != ProposalPending {
		return nil, ErrAlreadyAccepted
	}

	post, err := o.Posts.Get(ctx, pr.PostID)
	if err != nil {
		return nil, err
	}
	if post.OwnerID != sellerID {
		return nil, ErrNotOwner
	}
	if pr.BuyerID == sellerID {
		return nil, ErrOwnListing
	}

	amount := post.Price
	if amount > 0 {
		balance, err := o.Ledger.BalanceForUpdate(ctx, pr.BuyerID)
		if err != nil {
			return nil, fmt.Errorf("read buyer balance: %w", err)
		}
		if balance < amount {
			return nil, credits.ErrInsufficientCredits
		}
		desc := fmt.Sprintf("Escrow for proposal #%d", proposalID)
		if err := credits.Apply(ctx, o.Ledger, pr.BuyerID, -amount, credits.TypeEscrow, desc); err != nil {
			return nil, err
		}
	}

	order := &Order{
		PostID:       pr.PostID,
		ProposalID:   pr.ID,
		BuyerID:      pr.BuyerID,
		SellerID:     sellerID,
		EscrowAmount: amount,
		Status:       OrderInProgress,
	}
	order.ID, err = o.Orders.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := o.Proposals.SetStatus(ctx, pr.ID, ProposalAccepted); err != nil {
		return nil, fmt.Errorf("accept proposal: %w", err)
	}
	if err := o.Posts.Assign(ctx, post.ID, pr.BuyerID); err != nil {
		return nil, fmt.Errorf("assign listing: %w", err)
	}

	return order, nil
}
