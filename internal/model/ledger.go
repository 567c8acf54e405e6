package model

import "time"

type EntryType string

const (
	EntryCredit EntryType = "credit"
	EntryDebit  EntryType = "debit"
	EntryBonus  EntryType = "bonus"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryCredit, EntryDebit, EntryBonus:
		return true
	}
	return false
}

// Reference kinds stored in points_ledger.ref_type.
const (
	RefDailyTask  = "daily_task"
	RefRedemption = "redemption"
	RefBonus      = "bonus"
)

// LedgerEntry is an immutable point movement. Points is a magnitude; the
// sign comes from EntryType.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	KidID       int64     `json:"kid_id"`
	EntryType   EntryType `json:"entry_type"`
	Points      int       `json:"points"`
	Description string    `json:"description"`
	RefType     string    `json:"ref_type,omitempty"`
	RefKey      string    `json:"ref_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Signed returns the entry's contribution to the balance.
func (e LedgerEntry) Signed() int {
	if e.EntryType == EntryDebit {
		return -e.Points
	}
	return e.Points
}

type PointBalance struct {
	KidID       int64  `json:"kid_id"`
	KidName     string `json:"kid_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}
