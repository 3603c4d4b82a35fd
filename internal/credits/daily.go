package credits

import (
	"context"
	"fmt"
	"time"
)

// LoginStore extends Store with the last-login bookkeeping the daily bonus
// needs.
type LoginStore interface {
	Store
	// LastLoginForUpdate reads users.last_login_at under a row lock; nil
	// when the user has never logged in.
	LastLoginForUpdate(ctx context.Context, userID int64) (*time.Time, error)
	SetLastLogin(ctx context.Context, userID int64, t time.Time) error
}

// GrantDailyLogin issues the once-per-calendar-day login bonus. Calendar
// days are compared in UTC. The bonus and the last_login_at update happen in
// the caller's transaction, so a crash can neither pay twice for one day nor
// advance the date without paying. Reports whether the bonus was granted.
func GrantDailyLogin(ctx context.Context, s LoginStore, userID int64, now time.Time) (bool, error) {
	last, err := s.LastLoginForUpdate(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("read last login: %w", err)
	}
	if last != nil && sameUTCDate(*last, now) {
		return false, nil
	}
	if err := Apply(ctx, s, userID, DailyLoginBonus, TypeBonus, "Daily login bonus"); err != nil {
		return false, err
	}
	if err := s.SetLastLogin(ctx, userID, now); err != nil {
		return false, fmt.Errorf("update last login: %w", err)
	}
	return true, nil
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
