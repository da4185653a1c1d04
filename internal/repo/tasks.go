package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"deskline/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

const taskColumns = `id,type,title,COALESCE(description,''),status,COALESCE(priority,''),COALESCE(assignee_id,''),due_at,related_kind,related_id,created_at,updated_at,completed_at`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var due, completed, relKind, relID sql.NullString
	var createdAt, updatedAt string
	err := s.Scan(&t.ID, &t.Type, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssigneeID,
		&due, &relKind, &relID, &createdAt, &updatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if t.DueAt, err = parseNullTime(due); err != nil {
		return t, err
	}
	if t.CompletedAt, err = parseNullTime(completed); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return t, err
	}
	t.Related = entityRef(relKind, relID)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	relKind, relID := refParts(t.Related)
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(id,type,title,description,status,priority,assignee_id,due_at,related_kind,related_id,created_at,updated_at,completed_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Type, t.Title, nullable(t.Description), t.Status, nullable(t.Priority), nullable(t.AssigneeID),
		nullableTime(t.DueAt), relKind, relID, formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullableTime(t.CompletedAt))
	return err
}

// UpdateTask rewrites every mutable column of t.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	relKind, relID := refParts(t.Related)
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE tasks SET type=?,title=?,description=?,status=?,priority=?,assignee_id=?,due_at=?,related_kind=?,related_id=?,updated_at=?,completed_at=? WHERE id=?`,
		t.Type, t.Title, nullable(t.Description), t.Status, nullable(t.Priority), nullable(t.AssigneeID),
		nullableTime(t.DueAt), relKind, relID, formatTime(t.UpdatedAt), nullableTime(t.CompletedAt), t.ID))
}

func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	Status     string
	AssigneeID string
	Type       string
	Limit      int
}

func listTasksQuery(f TaskFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, rowid"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	query, args := listTasksQuery(f)
	return list(ctx, r.DB, query, scanTask, args...)
}
