package escrow

import (
	"context"
	"fmt"

	"github.com/skillswap/backend/internal/credits"
)

// Closer settles an order once both parties have confirmed completion.
type Closer struct {
	Orders OrderStore
	Posts  PostStore
	Ledger credits.Store
}

// Confirm records the acting party's confirmation and, when both buyer and
// seller have confirmed, pays the seller the escrowed amount plus the
// completion bonus and marks the order and its listing COMPLETED.
//
// The payout block runs at most once per order: the order row is locked for
// the transaction and the release is gated on status != COMPLETED under that
// lock, so concurrent confirmations serialize and only the first releasing
// call pays. Confirming an already-settled order just re-records the flag.
func (cl *Closer) Confirm(ctx context.Context, orderID, userID int64) (*Order, error) {
	order, err := cl.Orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch userID {
	case order.BuyerID:
		order.BuyerConfirmed = true
		if err := cl.Orders.SetConfirmed(ctx, order.ID, true); err != nil {
			return nil, fmt.Errorf("record buyer confirmation: %w", err)
		}
	case order.SellerID:
		order.SellerConfirmed = true
		if err := cl.Orders.SetConfirmed(ctx, order.ID, false); err != nil {
			return nil, fmt.Errorf("record seller confirmation: %w", err)
		}
	default:
		return nil, ErrNotParticipant
	}

	if order.Status == OrderCancelled {
		return nil, ErrOrderClosed
	}

	// Release requires both confirmations. Buyer-only release would let one
	// party force payout unilaterally.
	if !order.BuyerConfirmed || !order.SellerConfirmed || order.Status == OrderCompleted {
		return order, nil
	}

	payout := order.EscrowAmount + credits.CompletionBonus
	desc := fmt.Sprintf("Order #%d payout + bonus", order.ID)
	if err := credits.Apply(ctx, cl.Ledger, order.SellerID, payout, credits.TypeEarned, desc); err != nil {
		return nil, err
	}
	if err := cl.Orders.Complete(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}
	if err := cl.Posts.SetStatus(ctx, order.PostID, PostCompleted); err != nil {
		return nil, fmt.Errorf("complete listing: %w", err)
	}
	order.Status = OrderCompleted

	return order, nil
}
