package model

import "time"

type Reward struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IconEmoji   string    `json:"icon_emoji"`
	CostPoints  int       `json:"cost_points"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionRejected  RedemptionStatus = "rejected"
	RedemptionDelivered RedemptionStatus = "delivered"
)

// CanTransition reports whether a redemption may move from s to next.
// Transitions only go forward.
func (s RedemptionStatus) CanTransition(next RedemptionStatus) bool {
	switch s {
	case RedemptionPending:
		return next == RedemptionApproved || next == RedemptionRejected
	case RedemptionApproved:
		return next == RedemptionDelivered
	}
	return false
}

type Redemption struct {
	ID          int64            `json:"id"`
	KidID       int64            `json:"kid_id"`
	RewardID    int64            `json:"reward_id"`
	Status      RedemptionStatus `json:"status"`
	CostPoints  int              `json:"cost_points"`
	RequestedAt time.Time        `json:"requested_at"`
	DecidedAt   *time.Time       `json:"decided_at"`
	DecidedBy   string           `json:"decided_by"`
	DeliveredAt *time.Time       `json:"delivered_at"`
	Notes       string           `json:"notes"`
}

// RedemptionDetail joins a redemption with the names a parent needs to
// decide on it.
type RedemptionDetail struct {
	Redemption
	KidName     string `json:"kid_name"`
	RewardTitle string `json:"reward_title"`
	RewardIcon  string `json:"reward_icon"`
}
