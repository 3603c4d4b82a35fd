package escrow

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/skillswap/backend/internal/db"
)

// PGProposalStore implements ProposalStore over a db.Querier.
type PGProposalStore struct {
	q db.Querier
}

func NewPGProposalStore(q db.Querier) *PGProposalStore { return &PGProposalStore{q: q} }

func (s *PGProposalStore) GetForUpdate(ctx context.Context, id int64) (*Proposal, error) {
	var p Proposal
	err := s.q.QueryRow(ctx,
		`SELECT id, post_id, buyer_id, status FROM proposals WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&p.ID, &p.PostID, &p.BuyerID, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProposalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGProposalStore) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := s.q.Exec(ctx, `UPDATE proposals SET status = $1 WHERE id = $2`, status, id)
	return err
}

// PGPostStore implements PostStore over a db.Querier.
type PGPostStore struct {
	q db.Querier
}

func NewPGPostStore(q db.Querier) *PGPostStore { return &PGPostStore{q: q} }

func (s *PGPostStore) Get(ctx context.Context, id int64) (*Post, error) {
	var p Post
	err := s.q.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(price, 0), status FROM posts WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.OwnerID, &p.Price, &p.Status)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGPostStore) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := s.q.Exec(ctx, `UPDATE posts SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (s *PGPostStore) Assign(ctx context.Context, id, userID int64) error {
	_, err := s.q.Exec(ctx,
		`UPDATE posts SET status = $1, assigned_to = $2 WHERE id = $3`,
		PostInProgress, userID, id,
	)
	return err
}

// PGOrderStore implements OrderStore over a db.Querier.
type PGOrderStore struct {
	q db.Querier
}

func NewPGOrderStore(q db.Querier) *PGOrderStore { return &PGOrderStore{q: q} }

func (s *PGOrderStore) Create(ctx context.Context, o *Order) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx,
		`INSERT INTO orders (post_id, proposal_id, buyer_id, seller_id, escrow_amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		o.PostID, o.ProposalID, o.BuyerID, o.SellerID, o.EscrowAmount, o.Status,
	).Scan(&id)
	return id, err
}

func (s *PGOrderStore) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	var o Order
	err := s.q.QueryRow(ctx,
		`SELECT id, post_id, proposal_id, buyer_id, seller_id, escrow_amount, status,
		        buyer_confirmed, seller_confirmed,
		        COALESCE(seller_delivered_files, ARRAY[]::text[]),
		        created_at, updated_at
		 FROM orders WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&o.ID, &o.PostID, &o.ProposalID, &o.BuyerID, &o.SellerID, &o.EscrowAmount, &o.Status,
		&o.BuyerConfirmed, &o.SellerConfirmed, &o.DeliveredFiles, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGOrderStore) SetConfirmed(ctx context.Context, id int64, byBuyer bool) error {
	column := "seller_confirmed"
	if byBuyer {
		column = "buyer_confirmed"
	}
	_, err := s.q.Exec(ctx,
		`UPDATE orders SET `+column+` = TRUE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	return err
}

func (s *PGOrderStore) Complete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
		OrderCompleted, id,
	)
	return err
}
