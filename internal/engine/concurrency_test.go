package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dukerupert/kidpoints/internal/database"
	"github.com/dukerupert/kidpoints/internal/model"
)

// setupFileEngineTest uses a database file so that concurrent callers get
// separate connections and really contend for the write lock.
func setupFileEngineTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "kidpoints.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newTestEnv(t, db)
}

// race runs fn from n goroutines at once and returns their errors.
func race(n int, fn func(i int) error) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestConcurrentBonusGrantedOnce(t *testing.T) {
	env := setupFileEngineTest(t)
	ctx := context.Background()
	brush := env.addTask(t, "Brush teeth", 5)
	if _, err := env.engine.CompleteTask(ctx, env.kidID, brush, env.engine.Today()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	errs := race(8, func(int) error {
		_, err := env.engine.GrantBonus(ctx, env.kidID, model.PeriodDaily)
		return err
	})

	granted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			granted++
		case errors.Is(err, ErrAlreadyGrantedBonus), errors.Is(err, ErrConcurrencyConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if granted != 1 {
		t.Errorf("grants = %d, want 1", granted)
	}
	if n := env.count(t, `SELECT COUNT(*) FROM points_ledger WHERE entry_type = 'bonus'`); n != 1 {
		t.Errorf("bonus entries = %d, want 1", n)
	}
	if b := env.balance(t); b != 15 {
		t.Errorf("balance = %d, want 15", b)
	}
}

func TestConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	env := setupFileEngineTest(t)
	ctx := context.Background()
	env.fund(t, 30)
	reward, _ := env.rewards.Create(env.familyID, "Movie night", "", "", 12, true)

	errs := race(6, func(int) error {
		_, err := env.engine.RequestRedemption(ctx, env.kidID, reward.ID, "")
		return err
	})

	requested := 0
	for _, err := range errs {
		switch {
		case err == nil:
			requested++
		case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrConcurrencyConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if requested > 2 {
		t.Errorf("requests = %d, want at most 2 (30 points, cost 12)", requested)
	}
	if n := env.count(t, `SELECT COUNT(*) FROM redemptions`); n != requested {
		t.Errorf("redemption rows = %d, want %d", n, requested)
	}
	b := env.balance(t)
	if b < 0 {
		t.Fatalf("balance went negative: %d", b)
	}
	if b != 30-12*requested {
		t.Errorf("balance = %d, want %d", b, 30-12*requested)
	}
}

func TestConcurrentDecisionsRefundOnce(t *testing.T) {
	env := setupFileEngineTest(t)
	ctx := context.Background()
	env.fund(t, 20)
	reward, _ := env.rewards.Create(env.familyID, "Sticker", "", "", 12, true)
	red, err := env.engine.RequestRedemption(ctx, env.kidID, reward.ID, "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	decisions := []model.RedemptionStatus{
		model.RedemptionRejected, model.RedemptionApproved,
		model.RedemptionRejected, model.RedemptionApproved,
		model.RedemptionRejected, model.RedemptionApproved,
	}
	errs := race(len(decisions), func(i int) error {
		_, err := env.engine.DecideRedemption(ctx, red.ID, decisions[i], "parent", "")
		return err
	})

	decided := 0
	for _, err := range errs {
		switch {
		case err == nil:
			decided++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConcurrencyConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if decided != 1 {
		t.Fatalf("successful decisions = %d, want 1", decided)
	}

	got, err := env.engine.GetRedemption(ctx, red.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	refunds := env.count(t, `SELECT COUNT(*) FROM points_ledger WHERE entry_type = 'credit' AND ref_type = 'redemption'`)
	switch got.Status {
	case model.RedemptionRejected:
		if refunds != 1 || env.balance(t) != 20 {
			t.Errorf("rejected: refunds = %d, balance = %d, want 1 and 20", refunds, env.balance(t))
		}
	case model.RedemptionApproved:
		if refunds != 0 || env.balance(t) != 8 {
			t.Errorf("approved: refunds = %d, balance = %d, want 0 and 8", refunds, env.balance(t))
		}
	default:
		t.Errorf("status = %s, want rejected or approved", got.Status)
	}
}
