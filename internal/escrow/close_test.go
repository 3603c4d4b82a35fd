package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skillswap/backend/internal/credits"
)

// newCloserFixture sets up an IN_PROGRESS order holding 30 credits in escrow
// for the usual buyer/seller pair.
func newCloserFixture() (*Closer, *mockLedger, *mockOrders, *mockPosts) {
	ledger := newMockLedger()
	orders := newMockOrders()
	orders.byID[1] = &Order{
		ID: 1, PostID: 100, ProposalID: 10,
		BuyerID: buyerID, SellerID: sellerID,
		EscrowAmount: 30, Status: OrderInProgress,
	}
	orders.nextID = 2
	posts := &mockPosts{byID: map[int64]*Post{
		100: {ID: 100, OwnerID: sellerID, Price: 30, Status: PostInProgress},
	}}

	cl := &Closer{Orders: orders, Posts: posts, Ledger: ledger}
	return cl, ledger, orders, posts
}

func TestConfirmOnePartyDoesNotRelease(t *testing.T) {
	cl, ledger, orders, _ := newCloserFixture()

	order, err := cl.Confirm(context.Background(), 1, buyerID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !order.BuyerConfirmed || order.SellerConfirmed {
		t.Errorf("confirmations = buyer %v seller %v", order.BuyerConfirmed, order.SellerConfirmed)
	}
	if order.Status != OrderInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", order.Status)
	}
	if len(ledger.entries) != 0 {
		t.Errorf("single confirmation released the escrow")
	}
	if !orders.byID[1].BuyerConfirmed {
		t.Errorf("buyer confirmation not persisted")
	}
}

func TestConfirmBothPartiesReleases(t *testing.T) {
	cl, ledger, orders, posts := newCloserFixture()
	ctx := context.Background()

	if _, err := cl.Confirm(ctx, 1, sellerID); err != nil {
		t.Fatalf("seller confirm: %v", err)
	}
	order, err := cl.Confirm(ctx, 1, buyerID)
	if err != nil {
		t.Fatalf("buyer confirm: %v", err)
	}

	if order.Status != OrderCompleted {
		t.Errorf("status = %s, want COMPLETED", order.Status)
	}
	wantPayout := int64(30) + credits.CompletionBonus
	if got := ledger.balances[sellerID]; got != wantPayout {
		t.Errorf("seller balance = %d, want %d", got, wantPayout)
	}
	entries := ledger.entriesFor(sellerID)
	if len(entries) != 1 {
		t.Fatalf("seller entries = %d, want 1", len(entries))
	}
	if entries[0].Amount != wantPayout || entries[0].Type != credits.TypeEarned {
		t.Errorf("payout entry = %+v", entries[0])
	}
	if entries[0].Description != "Order #1 payout + bonus" {
		t.Errorf("payout description = %q", entries[0].Description)
	}
	if orders.byID[1].Status != OrderCompleted {
		t.Errorf("stored order status = %s", orders.byID[1].Status)
	}
	if posts.byID[100].Status != PostCompleted {
		t.Errorf("listing status = %s, want COMPLETED", posts.byID[100].Status)
	}
}

func TestConfirmAfterCompletionPaysNothing(t *testing.T) {
	cl, ledger, _, _ := newCloserFixture()
	ctx := context.Background()

	if _, err := cl.Confirm(ctx, 1, sellerID); err != nil {
		t.Fatalf("seller confirm: %v", err)
	}
	if _, err := cl.Confirm(ctx, 1, buyerID); err != nil {
		t.Fatalf("buyer confirm: %v", err)
	}
	// Both parties retry after settlement.
	if _, err := cl.Confirm(ctx, 1, buyerID); err != nil {
		t.Fatalf("buyer re-confirm: %v", err)
	}
	if _, err := cl.Confirm(ctx, 1, sellerID); err != nil {
		t.Fatalf("seller re-confirm: %v", err)
	}

	if got := len(ledger.entriesFor(sellerID)); got != 1 {
		t.Errorf("payout entries = %d, want exactly 1", got)
	}
	wantPayout := int64(30) + credits.CompletionBonus
	if got := ledger.balances[sellerID]; got != wantPayout {
		t.Errorf("seller balance = %d, want %d", got, wantPayout)
	}
}

func TestConfirmStrangerRejected(t *testing.T) {
	cl, ledger, orders, _ := newCloserFixture()

	_, err := cl.Confirm(context.Background(), 1, 99)
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}
	if len(ledger.entries) != 0 || orders.byID[1].BuyerConfirmed || orders.byID[1].SellerConfirmed {
		t.Errorf("stranger call mutated the order")
	}
}

func TestConfirmCancelledOrder(t *testing.T) {
	cl, ledger, orders, _ := newCloserFixture()
	orders.byID[1].Status = OrderCancelled

	_, err := cl.Confirm(context.Background(), 1, buyerID)
	if !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("err = %v, want ErrOrderClosed", err)
	}
	if len(ledger.entries) != 0 {
		t.Errorf("cancelled order released escrow")
	}
}

func TestConfirmMissingOrder(t *testing.T) {
	cl, _, _, _ := newCloserFixture()

	_, err := cl.Confirm(context.Background(), 404, buyerID)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestConfirmConcurrentPaysExactlyOnce(t *testing.T) {
	cl, ledger, _, _ := newCloserFixture()

	// In production each Confirm runs in its own transaction and the order
	// row lock serializes them; rowLock plays that role here. The point is
	// that serialized confirmations in any interleaving pay exactly once.
	var rowLock sync.Mutex
	confirm := func(userID int64) error {
		rowLock.Lock()
		defer rowLock.Unlock()
		_, err := cl.Confirm(context.Background(), 1, userID)
		return err
	}

	const rounds = 8
	var wg sync.WaitGroup
	errCh := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errCh <- confirm(buyerID)
		}()
		go func() {
			defer wg.Done()
			errCh <- confirm(sellerID)
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("Confirm: %v", err)
		}
	}

	if got := len(ledger.entriesFor(sellerID)); got != 1 {
		t.Errorf("payout entries = %d, want exactly 1", got)
	}
	wantPayout := int64(30) + credits.CompletionBonus
	if got := ledger.balances[sellerID]; got != wantPayout {
		t.Errorf("seller balance = %d, want %d", got, wantPayout)
	}
}
