package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/skillswap/backend/internal/credits"
)

// In-memory stores standing in for the postgres-backed ones. They model DB
// semantics closely enough for the engine logic: GetForUpdate hands out
// copies, writes go back through the Set*/Complete methods.

type mockLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	entries  []credits.Entry
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[int64]int64)}
}

func (m *mockLedger) AddToBalance(_ context.Context, userID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID]+delta < 0 {
		return fmt.Errorf("balance check violated for user %d", userID)
	}
	m.balances[userID] += delta
	return nil
}

func (m *mockLedger) BalanceForUpdate(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *mockLedger) AppendEntry(_ context.Context, userID, amount int64, t credits.Type, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, credits.Entry{
		UserID:      userID,
		Amount:      amount,
		Type:        t,
		Description: description,
	})
	return nil
}

func (m *mockLedger) entriesFor(userID int64) []credits.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []credits.Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

type mockProposals struct {
	mu   sync.Mutex
	byID map[int64]*Proposal
}

func (m *mockProposals) GetForUpdate(_ context.Context, id int64) (*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.byID[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	cp := *pr
	return &cp, nil
}

func (m *mockProposals) SetStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = status
	return nil
}

type mockPosts struct {
	mu   sync.Mutex
	byID map[int64]*Post
	// assignedTo records the last Assign call per post.
	assignedTo map[int64]int64
}

func (m *mockPosts) Get(_ context.Context, id int64) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, errors.New("post not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockPosts) SetStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = status
	return nil
}

func (m *mockPosts) Assign(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = PostInProgress
	if m.assignedTo == nil {
		m.assignedTo = make(map[int64]int64)
	}
	m.assignedTo[id] = userID
	return nil
}

type mockOrders struct {
	mu     sync.Mutex
	byID   map[int64]*Order
	nextID int64
}

func newMockOrders() *mockOrders {
	return &mockOrders{byID: make(map[int64]*Order), nextID: 1}
}

func (m *mockOrders) Create(_ context.Context, o *Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	cp.ID = m.nextID
	m.nextID++
	m.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (m *mockOrders) GetForUpdate(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) SetConfirmed(_ context.Context, id int64, byBuyer bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byBuyer {
		m.byID[id].BuyerConfirmed = true
	} else {
		m.byID[id].SellerConfirmed = true
	}
	return nil
}

func (m *mockOrders) Complete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = OrderCompleted
	return nil
}

const (
	sellerID = int64(1)
	buyerID  = int64(2)
)

// newOpenerFixture sets up one OPEN listing by sellerID with a PENDING
// proposal from buyerID.
func newOpenerFixture(price, buyerBalance int64) (*Opener, *mockLedger, *mockProposals, *mockPosts, *mockOrders) {
	ledger := newMockLedger()
	ledger.balances[buyerID] = buyerBalance

	proposals := &mockProposals{byID: map[int64]*Proposal{
		10: {ID: 10, PostID: 100, BuyerID: buyerID, Status: ProposalPending},
	}}
	posts := &mockPosts{byID: map[int64]*Post{
		100: {ID: 100, OwnerID: sellerID, Price: price, Status: PostOpen},
	}}
	orders := newMockOrders()

	op := &Opener{Proposals: proposals, Posts: posts, Orders: orders, Ledger: ledger}
	return op, ledger, proposals, posts, orders
}

func TestAcceptOpensEscrow(t *testing.T) {
	op, ledger, proposals, posts, orders := newOpenerFixture(30, 100)

	order, err := op.Accept(context.Background(), 10, sellerID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if ledger.balances[buyerID] != 70 {
		t.Errorf("buyer balance = %d, want 70", ledger.balances[buyerID])
	}
	entries := ledger.entriesFor(buyerID)
	if len(entries) != 1 {
		t.Fatalf("buyer entries = %d, want 1", len(entries))
	}
	if entries[0].Amount != -30 || entries[0].Type != credits.TypeEscrow {
		t.Errorf("escrow entry = %+v", entries[0])
	}
	if entries[0].Description != "Escrow for proposal #10" {
		t.Errorf("escrow description = %q", entries[0].Description)
	}

	if order.EscrowAmount != 30 || order.Status != OrderInProgress {
		t.Errorf("order = %+v", order)
	}
	if order.BuyerID != buyerID || order.SellerID != sellerID {
		t.Errorf("order parties = buyer %d seller %d", order.BuyerID, order.SellerID)
	}
	if stored := orders.byID[order.ID]; stored == nil || stored.EscrowAmount != 30 {
		t.Errorf("stored order = %+v", stored)
	}

	if proposals.byID[10].Status != ProposalAccepted {
		t.Errorf("proposal status = %s", proposals.byID[10].Status)
	}
	if posts.byID[100].Status != PostInProgress || posts.assignedTo[100] != buyerID {
		t.Errorf("post status = %s, assigned to %d", posts.byID[100].Status, posts.assignedTo[100])
	}
}

func TestAcceptInsufficientCredits(t *testing.T) {
	op, ledger, proposals, _, orders := newOpenerFixture(30, 20)

	_, err := op.Accept(context.Background(), 10, sellerID)
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	if ledger.balances[buyerID] != 20 || len(ledger.entries) != 0 {
		t.Errorf("failed acceptance touched the ledger: balance=%d entries=%d", ledger.balances[buyerID], len(ledger.entries))
	}
	if len(orders.byID) != 0 {
		t.Errorf("failed acceptance created an order")
	}
	if proposals.byID[10].Status != ProposalPending {
		t.Errorf("proposal status = %s, want PENDING", proposals.byID[10].Status)
	}
}

func TestAcceptFreeListing(t *testing.T) {
	op, ledger, _, _, _ := newOpenerFixture(0, 0)

	order, err := op.Accept(context.Background(), 10, sellerID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if order.EscrowAmount != 0 {
		t.Errorf("escrow amount = %d, want 0", order.EscrowAmount)
	}
	if len(ledger.entries) != 0 {
		t.Errorf("free listing wrote %d ledger entries", len(ledger.entries))
	}
}

func TestAcceptAlreadyHandled(t *testing.T) {
	op, _, proposals, _, _ := newOpenerFixture(30, 100)
	proposals.byID[10].Status = ProposalAccepted

	_, err := op.Accept(context.Background(), 10, sellerID)
	if !errors.Is(err, ErrAlreadyAccepted) {
		t.Fatalf("err = %v, want ErrAlreadyAccepted", err)
	}
}

func TestAcceptNotOwner(t *testing.T) {
	op, _, _, _, _ := newOpenerFixture(30, 100)

	_, err := op.Accept(context.Background(), 10, 99)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestAcceptOwnListing(t *testing.T) {
	op, _, proposals, _, _ := newOpenerFixture(30, 100)
	proposals.byID[10].BuyerID = sellerID

	_, err := op.Accept(context.Background(), 10, sellerID)
	if !errors.Is(err, ErrOwnListing) {
		t.Fatalf("err = %v, want ErrOwnListing", err)
	}
}

func TestAcceptMissingProposal(t *testing.T) {
	op, _, _, _, _ := newOpenerFixture(30, 100)

	_, err := op.Accept(context.Background(), 404, sellerID)
	if !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("err = %v, want ErrProposalNotFound", err)
	}
}
