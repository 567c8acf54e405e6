package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/model"
)

type KidStore struct {
	db *sql.DB
}

func NewKidStore(db *sql.DB) *KidStore {
	return &KidStore{db: db}
}

func scanKid(scanner interface{ Scan(...any) error }) (*model.Kid, error) {
	var k model.Kid
	var age sql.NullInt64

	err := scanner.Scan(&k.ID, &k.FamilyID, &k.DisplayName, &age, &k.ColorHex, &k.AvatarURL, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if age.Valid {
		a := int(age.Int64)
		k.Age = &a
	}
	return &k, nil
}

const kidCols = `id, family_id, display_name, age, color_hex, avatar_url, created_at, updated_at`

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func (s *KidStore) Create(familyID int64, displayName string, age *int, colorHex, avatarURL string) (*model.Kid, error) {
	result, err := s.db.Exec(
		`INSERT INTO kids (family_id, display_name, age, color_hex, avatar_url) VALUES (?, ?, ?, ?, ?)`,
		familyID, displayName, nullInt(age), colorHex, avatarURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert kid: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *KidStore) GetByID(id int64) (*model.Kid, error) {
	row := s.db.QueryRow(`SELECT `+kidCols+` FROM kids WHERE id = ?`, id)
	k, err := scanKid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get kid: %w", err)
	}
	return k, nil
}

// ListByFamily returns a family's kids ordered by name.
func (s *KidStore) ListByFamily(familyID int64) ([]model.Kid, error) {
	rows, err := s.db.Query(
		`SELECT `+kidCols+` FROM kids WHERE family_id = ? ORDER BY display_name ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list kids: %w", err)
	}
	defer rows.Close()

	var kids []model.Kid
	for rows.Next() {
		k, err := scanKid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kid: %w", err)
		}
		kids = append(kids, *k)
	}
	return kids, rows.Err()
}

func (s *KidStore) Update(id int64, displayName string, age *int, colorHex, avatarURL string) (*model.Kid, error) {
	_, err := s.db.Exec(
		`UPDATE kids SET display_name = ?, age = ?, color_hex = ?, avatar_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		displayName, nullInt(age), colorHex, avatarURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update kid: %w", err)
	}
	return s.GetByID(id)
}

func (s *KidStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM kids WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete kid: %w", err)
	}
	return nil
}
