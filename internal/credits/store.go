package credits

import (
	"context"
	"time"

	"github.com/skillswap/backend/internal/db"
)

// PGStore implements Store and LoginStore over a db.Querier. Pass a pgx.Tx
// for compound actions; the store itself never opens a transaction.
type PGStore struct {
	q db.Querier
}

func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{q: q}
}

var _ LoginStore = (*PGStore)(nil)

func (s *PGStore) AddToBalance(ctx context.Context, userID, delta int64) error {
	_, err := s.q.Exec(ctx,
		`UPDATE users SET credits = credits + $1 WHERE id = $2`,
		delta, userID,
	)
	return err
}

func (s *PGStore) BalanceForUpdate(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.q.QueryRow(ctx,
		`SELECT credits FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance)
	return balance, err
}

func (s *PGStore) AppendEntry(ctx context.Context, userID, amount int64, t Type, description string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO credit_history (user_id, amount, transaction_type, description)
		 VALUES ($1, $2, $3, $4)`,
		userID, amount, string(t), description,
	)
	return err
}

func (s *PGStore) LastLoginForUpdate(ctx context.Context, userID int64) (*time.Time, error) {
	var last *time.Time
	err := s.q.QueryRow(ctx,
		`SELECT last_login_at FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}

func (s *PGStore) SetLastLogin(ctx context.Context, userID int64, t time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE users SET last_login_at = $1 WHERE id = $2`,
		t, userID,
	)
	return err
}

// Balance reads the user's spendable balance without locking.
func (s *PGStore) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.q.QueryRow(ctx,
		`SELECT credits FROM users WHERE id = $1`,
		userID,
	).Scan(&balance)
	return balance, err
}

// History returns the user's ledger entries, newest first.
func (s *PGStore) History(ctx context.Context, userID int64) ([]Entry, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, user_id, amount, transaction_type, COALESCE(description, ''), created_at
		 FROM credit_history
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Type, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
