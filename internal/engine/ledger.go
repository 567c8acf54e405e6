package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/database"
	"github.com/dukerupert/kidpoints/internal/model"
)

// errDuplicateRef means an entry with the same (kid, ref, type) exists.
// Callers translate it into the business error for their reference kind.
var errDuplicateRef = errors.New("ledger reference already used")

const ledgerCols = `id, kid_id, entry_type, points, description, ref_type, ref_key, created_at`

// signedPoints folds entry rows into a balance.
const signedPoints = `CASE WHEN entry_type = 'debit' THEN -points ELSE points END`

func scanEntry(scanner interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var en model.LedgerEntry
	var refType, refKey sql.NullString

	err := scanner.Scan(&en.ID, &en.KidID, &en.EntryType, &en.Points, &en.Description, &refType, &refKey, &en.CreatedAt)
	if err != nil {
		return nil, err
	}

	en.RefType = refType.String
	en.RefKey = refKey.String
	return &en, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// appendEntry is the only way points move. It never updates or deletes.
func (e *Engine) appendEntry(ctx context.Context, q querier, en model.LedgerEntry) (int64, error) {
	if !en.EntryType.Valid() {
		return 0, invalid("entry type %q", en.EntryType)
	}
	if en.Points < 0 {
		return 0, invalid("points must not be negative")
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO points_ledger (kid_id, entry_type, points, description, ref_type, ref_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		en.KidID, en.EntryType, en.Points, en.Description, nullString(en.RefType), nullString(en.RefKey), e.timestamp(),
	)
	if database.IsUniqueViolation(err) {
		return 0, errDuplicateRef
	}
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}
	return result.LastInsertId()
}

func balanceOf(ctx context.Context, q querier, kidID int64) (int, error) {
	var balance int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(`+signedPoints+`), 0) FROM points_ledger WHERE kid_id = ?`,
		kidID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return balance, nil
}

// Balance returns the kid's current points, folded from the ledger.
func (e *Engine) Balance(ctx context.Context, kidID int64) (int, error) {
	if _, err := kidFamily(ctx, e.db, kidID); err != nil {
		return 0, err
	}
	return balanceOf(ctx, e.db, kidID)
}

// PointBalance returns the kid's balance split into earned and spent.
func (e *Engine) PointBalance(ctx context.Context, kidID int64) (*model.PointBalance, error) {
	row := e.db.QueryRowContext(ctx,
		`SELECT k.id, k.display_name,
		        COALESCE(SUM(CASE WHEN l.entry_type != 'debit' THEN l.points END), 0),
		        COALESCE(SUM(CASE WHEN l.entry_type = 'debit' THEN l.points END), 0)
		 FROM kids k
		 LEFT JOIN points_ledger l ON l.kid_id = k.id
		 WHERE k.id = ?
		 GROUP BY k.id`,
		kidID,
	)
	pb, err := scanPointBalance(row)
	if err == sql.ErrNoRows {
		return nil, notFound("kid", kidID)
	}
	if err != nil {
		return nil, fmt.Errorf("get point balance: %w", err)
	}
	return pb, nil
}

func scanPointBalance(scanner interface{ Scan(...any) error }) (*model.PointBalance, error) {
	var pb model.PointBalance
	if err := scanner.Scan(&pb.KidID, &pb.KidName, &pb.TotalEarned, &pb.TotalSpent); err != nil {
		return nil, err
	}
	pb.Balance = pb.TotalEarned - pb.TotalSpent
	return &pb, nil
}

// Leaderboard returns balances for every kid in the family, highest first.
func (e *Engine) Leaderboard(ctx context.Context, familyID int64) ([]model.PointBalance, error) {
	if err := familyExists(ctx, e.db, familyID); err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT k.id, k.display_name,
		        COALESCE(SUM(CASE WHEN l.entry_type != 'debit' THEN l.points END), 0) AS earned,
		        COALESCE(SUM(CASE WHEN l.entry_type = 'debit' THEN l.points END), 0) AS spent
		 FROM kids k
		 LEFT JOIN points_ledger l ON l.kid_id = k.id
		 WHERE k.family_id = ?
		 GROUP BY k.id
		 ORDER BY earned - spent DESC, k.display_name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	balances := []model.PointBalance{}
	for rows.Next() {
		pb, err := scanPointBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, *pb)
	}
	return balances, rows.Err()
}

// History returns the kid's most recent entries, newest first. A limit of
// zero means DefaultHistoryLimit; larger limits are capped.
func (e *Engine) History(ctx context.Context, kidID int64, limit int) ([]model.LedgerEntry, error) {
	if limit < 0 {
		return nil, invalid("limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit > e.maxHistory {
		limit = e.maxHistory
	}
	if _, err := kidFamily(ctx, e.db, kidID); err != nil {
		return nil, err
	}

	return e.listEntries(ctx,
		`SELECT `+ledgerCols+` FROM points_ledger WHERE kid_id = ? ORDER BY id DESC LIMIT ?`,
		kidID, limit,
	)
}

// Entries returns the kid's full ledger, oldest first.
func (e *Engine) Entries(ctx context.Context, kidID int64) ([]model.LedgerEntry, error) {
	if _, err := kidFamily(ctx, e.db, kidID); err != nil {
		return nil, err
	}
	return e.listEntries(ctx, `SELECT `+ledgerCols+` FROM points_ledger WHERE kid_id = ? ORDER BY id ASC`, kidID)
}

func (e *Engine) listEntries(ctx context.Context, query string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		en, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *en)
	}
	return entries, rows.Err()
}
