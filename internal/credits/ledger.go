package credits

import (
	"context"
	"fmt"
)

// Store is the transaction-scoped storage the ledger writes through. The
// caller owns the transaction; implementations never commit or roll back.
type Store interface {
	// AddToBalance adjusts users.credits by delta (negative for debits).
	AddToBalance(ctx context.Context, userID, delta int64) error
	// BalanceForUpdate reads the user's balance under a row lock, held
	// until the enclosing transaction ends.
	BalanceForUpdate(ctx context.Context, userID int64) (int64, error)
	// AppendEntry records one immutable ledger row.
	AppendEntry(ctx context.Context, userID, amount int64, t Type, description string) error
}

// Apply moves amount credits on the user's balance and appends the matching
// ledger entry. Both writes go through the caller's transaction, so a
// compound action (fee + bonus, escrow + order insert) stays all-or-nothing.
//
// Apply does not enforce a non-negative resulting balance; callers that need
// the guard check BalanceForUpdate first, inside the same transaction.
func Apply(ctx context.Context, s Store, userID, amount int64, t Type, description string) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := s.AddToBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if err := s.AppendEntry(ctx, userID, amount, t, description); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// GrantWelcome issues the one-time signup bonus. It runs inside the signup
// transaction; account creation itself guarantees it happens once.
func GrantWelcome(ctx context.Context, s Store, userID int64) error {
	return Apply(ctx, s, userID, WelcomeBonus, TypeBonus, "Welcome Bonus")
}

// ChargePublication charges the listing fee and grants the smaller
// offsetting bonus, net -5. The caller inserts the listing in the same
// transaction so the fee is never paid for a listing that was not created.
func ChargePublication(ctx context.Context, s Store, userID int64) error {
	balance, err := s.BalanceForUpdate(ctx, userID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance < PostingFee {
		return ErrInsufficientCredits
	}
	if err := Apply(ctx, s, userID, -PostingFee, TypeSpent, "Listing publication fee"); err != nil {
		return err
	}
	return Apply(ctx, s, userID, PostingBonus, TypeBonus, "Listing publication bonus")
}

// GrantRatingBonus credits the listing owner when a comment meets the
// quality threshold. Reports whether a bonus was granted.
func GrantRatingBonus(ctx context.Context, s Store, ownerID, postID int64, rating int) (bool, error) {
	if rating < RatingThreshold {
		return false, nil
	}
	desc := fmt.Sprintf("High rating on listing #%d", postID)
	if err := Apply(ctx, s, ownerID, RatingBonus, TypeBonus, desc); err != nil {
		return false, err
	}
	return true, nil
}
