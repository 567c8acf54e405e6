package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/database"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/schedule"
)

type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var days string
	var override sql.NullInt64
	var active int

	err := scanner.Scan(&a.ID, &a.KidID, &a.TaskTemplateID, &days, &override,
		&a.StartDate, &a.EndDate, &active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.DaysOfWeek = schedule.Split(days)
	if override.Valid {
		p := int(override.Int64)
		a.PointsOverride = &p
	}
	a.Active = active != 0
	return &a, nil
}

const assignmentCols = `id, kid_id, task_template_id, days_of_week, points_override, start_date, end_date, active, created_at, updated_at`

// Create inserts a. DaysOfWeek must already be canonical (see
// schedule.ParseDays).
func (s *AssignmentStore) Create(a model.Assignment) (*model.Assignment, error) {
	result, err := s.db.Exec(
		`INSERT INTO assignments (kid_id, task_template_id, days_of_week, points_override, start_date, end_date, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.KidID, a.TaskTemplateID, schedule.Join(a.DaysOfWeek), nullInt(a.PointsOverride),
		a.StartDate, a.EndDate, boolInt(a.Active),
	)
	if database.IsUniqueViolation(err) {
		return nil, ErrDuplicateAssignment
	}
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssignmentStore) GetByID(id int64) (*model.Assignment, error) {
	row := s.db.QueryRow(`SELECT `+assignmentCols+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// GetForKidTemplate returns the kid's assignment for a template, or nil.
func (s *AssignmentStore) GetForKidTemplate(kidID, templateID int64) (*model.Assignment, error) {
	row := s.db.QueryRow(
		`SELECT `+assignmentCols+` FROM assignments WHERE kid_id = ? AND task_template_id = ?`,
		kidID, templateID,
	)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment for kid template: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) ListByKid(kidID int64) ([]model.Assignment, error) {
	return s.list(`SELECT `+assignmentCols+` FROM assignments WHERE kid_id = ? ORDER BY id ASC`, kidID)
}

// ListByFamily returns the assignments of every kid in the family.
func (s *AssignmentStore) ListByFamily(familyID int64) ([]model.Assignment, error) {
	return s.list(
		`SELECT a.id, a.kid_id, a.task_template_id, a.days_of_week, a.points_override,
		        a.start_date, a.end_date, a.active, a.created_at, a.updated_at
		 FROM assignments a
		 JOIN kids k ON k.id = a.kid_id
		 WHERE k.family_id = ?
		 ORDER BY a.kid_id ASC, a.id ASC`,
		familyID,
	)
}

func (s *AssignmentStore) list(query string, args ...any) ([]model.Assignment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// Update rewrites the schedule fields of an assignment. Moving it onto a
// template the kid already has yields ErrDuplicateAssignment.
func (s *AssignmentStore) Update(a model.Assignment) (*model.Assignment, error) {
	_, err := s.db.Exec(
		`UPDATE assignments
		 SET task_template_id = ?, days_of_week = ?, points_override = ?, start_date = ?, end_date = ?, active = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		a.TaskTemplateID, schedule.Join(a.DaysOfWeek), nullInt(a.PointsOverride),
		a.StartDate, a.EndDate, boolInt(a.Active), a.ID,
	)
	if database.IsUniqueViolation(err) {
		return nil, ErrDuplicateAssignment
	}
	if err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return s.GetByID(a.ID)
}

func (s *AssignmentStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
