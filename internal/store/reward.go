package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := scanner.Scan(&r.ID, &r.FamilyID, &r.Title, &r.Description, &r.IconEmoji,
		&r.CostPoints, &active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, family_id, title, description, icon_emoji, cost_points, active, created_at, updated_at`

func (s *RewardStore) Create(familyID int64, title, description, iconEmoji string, costPoints int, active bool) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (family_id, title, description, icon_emoji, cost_points, active) VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, title, description, iconEmoji, costPoints, boolInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListByFamily returns all rewards, active first, then by title.
func (s *RewardStore) ListByFamily(familyID int64) ([]model.Reward, error) {
	return s.list(
		`SELECT `+rewardCols+` FROM rewards WHERE family_id = ? ORDER BY active DESC, title ASC`,
		familyID,
	)
}

// ListActiveForKid returns the active rewards of the kid's family, cheapest
// first.
func (s *RewardStore) ListActiveForKid(kidID int64) ([]model.Reward, error) {
	return s.list(
		`SELECT `+rewardCols+` FROM rewards
		 WHERE active = 1 AND family_id = (SELECT family_id FROM kids WHERE id = ?)
		 ORDER BY cost_points ASC, title ASC`,
		kidID,
	)
}

func (s *RewardStore) list(query string, args ...any) ([]model.Reward, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, title, description, iconEmoji string, costPoints int, active bool) (*model.Reward, error) {
	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, icon_emoji = ?, cost_points = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		title, description, iconEmoji, costPoints, boolInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a reward nobody has requested yet. A reward with
// redemptions returns ErrInUse; deactivate it instead.
func (s *RewardStore) Delete(id int64) error {
	result, err := s.db.Exec(
		`DELETE FROM rewards WHERE id = ? AND NOT EXISTS (SELECT 1 FROM redemptions WHERE reward_id = ?)`,
		id, id,
	)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	if n == 0 {
		return inUse(s.db, `SELECT EXISTS(SELECT 1 FROM redemptions WHERE reward_id = ?)`, id, "reward has redemptions")
	}
	return nil
}

// --- Redemption listings ---
//
// Redemptions are written by the engine; the store only reads them.

func scanRedemptionDetail(scanner interface{ Scan(...any) error }) (*model.RedemptionDetail, error) {
	var r model.RedemptionDetail
	var decidedAt, deliveredAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.KidID, &r.RewardID, &r.Status, &r.CostPoints, &r.RequestedAt,
		&decidedAt, &r.DecidedBy, &deliveredAt, &r.Notes, &r.KidName, &r.RewardTitle, &r.RewardIcon)
	if err != nil {
		return nil, err
	}

	if decidedAt.Valid {
		r.DecidedAt = &decidedAt.Time
	}
	if deliveredAt.Valid {
		r.DeliveredAt = &deliveredAt.Time
	}
	return &r, nil
}

const redemptionDetailSelect = `SELECT r.id, r.kid_id, r.reward_id, r.status, r.cost_points, r.requested_at,
       r.decided_at, r.decided_by, r.delivered_at, r.notes,
       k.display_name, w.title, w.icon_emoji
FROM redemptions r
JOIN kids k ON k.id = r.kid_id
JOIN rewards w ON w.id = r.reward_id`

// ListRedemptionsByFamily returns the family's redemptions, newest first.
// An empty status matches every status.
func (s *RewardStore) ListRedemptionsByFamily(familyID int64, status model.RedemptionStatus) ([]model.RedemptionDetail, error) {
	return s.listRedemptions(
		redemptionDetailSelect+` WHERE k.family_id = ? AND (? = '' OR r.status = ?) ORDER BY r.requested_at DESC, r.id DESC`,
		familyID, status, status,
	)
}

// ListRedemptionsByKid returns one kid's redemptions, newest first.
func (s *RewardStore) ListRedemptionsByKid(kidID int64) ([]model.RedemptionDetail, error) {
	return s.listRedemptions(
		redemptionDetailSelect+` WHERE r.kid_id = ? ORDER BY r.requested_at DESC, r.id DESC`,
		kidID,
	)
}

func (s *RewardStore) listRedemptions(query string, args ...any) ([]model.RedemptionDetail, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.RedemptionDetail
	for rows.Next() {
		r, err := scanRedemptionDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}
