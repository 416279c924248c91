package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/agnivade/levenshtein"
)

// RegistrationRepo journals submission attempts.
type RegistrationRepo struct {
	db *sql.DB
}

func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

func (r *RegistrationRepo) Insert(ctx context.Context, reg Registration) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO registrations(
	 id, name, latitude, longitude, image_count, outcome, http_status, message, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		reg.ID, reg.Name, reg.Latitude, reg.Longitude, reg.ImageCount, string(reg.Outcome),
		reg.HTTPStatus, reg.Message, reg.CreatedAt)
	return err
}

// List returns the newest attempts first. limit <= 0 means no limit.
func (r *RegistrationRepo) List(ctx context.Context, limit int) ([]Registration, error) {
	query := "SELECT id, name, latitude, longitude, image_count, outcome, http_status, message, created_at FROM registrations ORDER BY created_at DESC, rowid DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// Similar returns successful registrations whose name is within maxDistance
// edits of name, ignoring case and surrounding space.
func (r *RegistrationRepo) Similar(ctx context.Context, name string, maxDistance int) ([]Registration, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}
	rows, err := r.query(ctx, "SELECT id, name, latitude, longitude, image_count, outcome, http_status, message, created_at FROM registrations WHERE outcome = ? ORDER BY created_at DESC, rowid DESC", string(OutcomeOK))
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []Registration
	for _, reg := range rows {
		candidate := strings.ToLower(strings.TrimSpace(reg.Name))
		if _, ok := seen[candidate]; ok {
			continue
		}
		if levenshtein.ComputeDistance(needle, candidate) <= maxDistance {
			seen[candidate] = struct{}{}
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r *RegistrationRepo) query(ctx context.Context, query string, args ...interface{}) ([]Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var (
			reg     Registration
			outcome string
			status  sql.NullInt64
		)
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.Latitude, &reg.Longitude, &reg.ImageCount, &outcome, &status, &reg.Message, &reg.CreatedAt); err != nil {
			return nil, err
		}
		reg.Outcome = Outcome(outcome)
		if status.Valid {
			s := int(status.Int64)
			reg.HTTPStatus = &s
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}
