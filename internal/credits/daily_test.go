package credits

import (
	"context"
	"testing"
	"time"
)

func TestGrantDailyLoginFirstEver(t *testing.T) {
	s := newMemStore()
	s.balances[1] = 50

	now := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	granted, err := GrantDailyLogin(context.Background(), s, 1, now)
	if err != nil {
		t.Fatalf("GrantDailyLogin: %v", err)
	}
	if !granted {
		t.Fatal("first login should grant the bonus")
	}
	if got := s.balance(1); got != 52 {
		t.Errorf("balance = %d, want 52", got)
	}
	if s.lastLogin[1] == nil || !s.lastLogin[1].Equal(now) {
		t.Errorf("last login = %v, want %v", s.lastLogin[1], now)
	}
}

func TestGrantDailyLoginIdempotentWithinDay(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.balances[1] = 0

	morning := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

	if granted, _ := GrantDailyLogin(ctx, s, 1, morning); !granted {
		t.Fatal("morning login should grant")
	}
	granted, err := GrantDailyLogin(ctx, s, 1, evening)
	if err != nil {
		t.Fatalf("GrantDailyLogin: %v", err)
	}
	if granted {
		t.Error("second login on the same day granted again")
	}
	if got := s.balance(1); got != DailyLoginBonus {
		t.Errorf("balance = %d, want %d", got, DailyLoginBonus)
	}
	if got := len(s.entriesFor(1)); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestGrantDailyLoginNewDay(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.balances[1] = 0

	day1 := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)

	if granted, _ := GrantDailyLogin(ctx, s, 1, day1); !granted {
		t.Fatal("day 1 login should grant")
	}
	granted, err := GrantDailyLogin(ctx, s, 1, day2)
	if err != nil {
		t.Fatalf("GrantDailyLogin: %v", err)
	}
	if !granted {
		t.Error("crossing midnight UTC should grant again")
	}
	if got := s.balance(1); got != 2*DailyLoginBonus {
		t.Errorf("balance = %d, want %d", got, 2*DailyLoginBonus)
	}
}

func TestGrantDailyLoginComparesInUTC(t *testing.T) {
	// 23:00 UTC on the 10th expressed in UTC+3 is 02:00 on the 11th local
	// time; it must still count as the 10th.
	ctx := context.Background()
	s := newMemStore()
	s.balances[1] = 0

	utc := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("UTC+3", 3*3600))

	if granted, _ := GrantDailyLogin(ctx, s, 1, utc); !granted {
		t.Fatal("first login should grant")
	}
	granted, err := GrantDailyLogin(ctx, s, 1, local)
	if err != nil {
		t.Fatalf("GrantDailyLogin: %v", err)
	}
	if granted {
		t.Error("same instant in another zone granted again")
	}
}
