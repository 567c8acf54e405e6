package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/model"
)

type TaskTemplateStore struct {
	db *sql.DB
}

func NewTaskTemplateStore(db *sql.DB) *TaskTemplateStore {
	return &TaskTemplateStore{db: db}
}

func scanTaskTemplate(scanner interface{ Scan(...any) error }) (*model.TaskTemplate, error) {
	var t model.TaskTemplate
	var active int

	err := scanner.Scan(&t.ID, &t.FamilyID, &t.Title, &t.Description, &t.IconEmoji,
		&t.BasePoints, &t.Recurrence, &active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Active = active != 0
	return &t, nil
}

const taskTemplateCols = `id, family_id, title, description, icon_emoji, base_points, recurrence, active, created_at, updated_at`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *TaskTemplateStore) Create(familyID int64, title, description, iconEmoji string, basePoints int, recurrence model.Recurrence, active bool) (*model.TaskTemplate, error) {
	result, err := s.db.Exec(
		`INSERT INTO task_templates (family_id, title, description, icon_emoji, base_points, recurrence, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		familyID, title, description, iconEmoji, basePoints, recurrence, boolInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskTemplateStore) GetByID(id int64) (*model.TaskTemplate, error) {
	row := s.db.QueryRow(`SELECT `+taskTemplateCols+` FROM task_templates WHERE id = ?`, id)
	t, err := scanTaskTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task template: %w", err)
	}
	return t, nil
}

// ListByFamily returns all templates for a family, active first, then by title.
func (s *TaskTemplateStore) ListByFamily(familyID int64) ([]model.TaskTemplate, error) {
	rows, err := s.db.Query(
		`SELECT `+taskTemplateCols+` FROM task_templates WHERE family_id = ? ORDER BY active DESC, title ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task templates: %w", err)
	}
	defer rows.Close()

	var templates []model.TaskTemplate
	for rows.Next() {
		t, err := scanTaskTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *TaskTemplateStore) Update(id int64, title, description, iconEmoji string, basePoints int, recurrence model.Recurrence, active bool) (*model.TaskTemplate, error) {
	_, err := s.db.Exec(
		`UPDATE task_templates
		 SET title = ?, description = ?, icon_emoji = ?, base_points = ?, recurrence = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		title, description, iconEmoji, basePoints, recurrence, boolInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task template: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a template that never produced a daily task. Once it has
// task history it returns ErrInUse and can only be deactivated.
func (s *TaskTemplateStore) Delete(id int64) error {
	result, err := s.db.Exec(
		`DELETE FROM task_templates WHERE id = ? AND NOT EXISTS (SELECT 1 FROM daily_tasks WHERE task_template_id = ?)`,
		id, id,
	)
	if err != nil {
		return fmt.Errorf("delete task template: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task template: %w", err)
	}
	if n == 0 {
		return inUse(s.db, `SELECT EXISTS(SELECT 1 FROM daily_tasks WHERE task_template_id = ?)`, id, "task template has daily tasks")
	}
	return nil
}
