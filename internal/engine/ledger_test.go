package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
)

func TestBalanceMatchesLedgerFold(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()
	brush := env.addTask(t, "Brush teeth", 5)
	bed := env.addTask(t, "Make bed", 3)
	reward, _ := env.rewards.Create(env.familyID, "Sticker", "", "", 4, true)

	env.engine.CompleteTask(ctx, env.kidID, brush, calendar.MustParse("2026-10-14"))
	env.engine.CompleteTask(ctx, env.kidID, bed, calendar.MustParse("2026-10-14"))
	env.engine.CompleteTask(ctx, env.kidID, brush, calendar.MustParse("2026-10-15"))
	r, err := env.engine.RequestRedemption(ctx, env.kidID, reward.ID, "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := env.engine.DecideRedemption(ctx, r.ID, model.RedemptionRejected, "mom", ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	env.engine.AdjustPoints(ctx, env.kidID, model.EntryDebit, 2, "broke a plate")

	entries, err := env.engine.Entries(ctx, env.kidID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	sum := 0
	for _, en := range entries {
		sum += en.Signed()
	}
	if b := env.balance(t); b != sum {
		t.Errorf("balance = %d, ledger fold = %d", b, sum)
	}
	if sum != 5+3+5-4+4-2 {
		t.Errorf("fold = %d, want 11", sum)
	}

	pb, err := env.engine.PointBalance(ctx, env.kidID)
	if err != nil {
		t.Fatalf("point balance: %v", err)
	}
	if pb.TotalEarned != 17 || pb.TotalSpent != 6 || pb.Balance != 11 {
		t.Errorf("point balance = %+v, want earned 17 spent 6 balance 11", pb)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if _, err := env.engine.AdjustPoints(ctx, env.kidID, model.EntryCredit, i, "gift"); err != nil {
			t.Fatalf("adjust %d: %v", i, err)
		}
	}

	history, err := env.engine.History(ctx, env.kidID, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len = %d, want 3", len(history))
	}
	if history[0].Points != 5 || history[2].Points != 3 {
		t.Errorf("points = %d..%d, want 5..3", history[0].Points, history[2].Points)
	}

	all, err := env.engine.History(ctx, env.kidID, 0)
	if err != nil {
		t.Fatalf("history default: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("default limit len = %d, want 5", len(all))
	}

	if _, err := env.engine.History(ctx, env.kidID, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative limit err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.engine.History(ctx, 999, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown kid err = %v, want ErrNotFound", err)
	}
}

func TestHistoryEmptyIsNotNil(t *testing.T) {
	env := setupEngineTest(t)
	history, err := env.engine.History(context.Background(), env.kidID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("history = %v, want empty slice", history)
	}
}

func TestLedgerEntriesAreImmutable(t *testing.T) {
	env := setupEngineTest(t)
	env.fund(t, 10)

	if _, err := env.db.Exec(`UPDATE points_ledger SET points = 1000 WHERE kid_id = ?`, env.kidID); err == nil {
		t.Fatal("expected ledger update to fail")
	}
	if b := env.balance(t); b != 10 {
		t.Errorf("balance = %d, want 10", b)
	}
}

func TestLeaderboard(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()
	sibling, _ := env.kids.Create(env.familyID, "Charles", nil, "", "")
	env.fund(t, 5)
	if _, err := env.engine.AdjustPoints(ctx, sibling.ID, model.EntryCredit, 20, "gift"); err != nil {
		t.Fatalf("adjust sibling: %v", err)
	}
	env.kids.Create(env.familyID, "Zed", nil, "", "")

	board, err := env.engine.Leaderboard(ctx, env.familyID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("len = %d, want 3", len(board))
	}
	if board[0].KidName != "Charles" || board[0].Balance != 20 {
		t.Errorf("first = %+v, want Charles with 20", board[0])
	}
	if board[2].KidName != "Zed" || board[2].Balance != 0 {
		t.Errorf("last = %+v, want Zed with 0", board[2])
	}

	if _, err := env.engine.Leaderboard(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown family err = %v, want ErrNotFound", err)
	}
}

func TestAdjustPointsValidation(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()

	cases := []struct {
		name        string
		entryType   model.EntryType
		points      int
		description string
		want        error
	}{
		{"bonus not allowed", model.EntryBonus, 5, "x", ErrInvalidInput},
		{"zero points", model.EntryCredit, 0, "x", ErrInvalidInput},
		{"blank description", model.EntryCredit, 5, "  ", ErrInvalidInput},
		{"overdraw", model.EntryDebit, 1, "x", ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.AdjustPoints(ctx, env.kidID, tc.entryType, tc.points, tc.description)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := env.engine.AdjustPoints(ctx, 999, model.EntryCredit, 1, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown kid err = %v, want ErrNotFound", err)
	}
}
