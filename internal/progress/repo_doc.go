package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// DocRepo is the document-store target: one JSON doc per progress key, any
// string module id accepted. Backed by sqlite in offline deployments.
type DocRepo struct {
	db *sql.DB
}

func NewDocRepo(db *sql.DB) *DocRepo { return &DocRepo{db: db} }

func (r *DocRepo) Upsert(ctx context.Context, rec Record) error {
	// Lockout monotonicity is enforced read-modify-write inside one tx; the
	// doc column is opaque to SQL.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := getDoc(ctx, tx, rec.StudentID, rec.CourseID, rec.ModuleID)
	if err == nil && existing.LockedUntil != nil {
		if rec.LockedUntil == nil || existing.LockedUntil.After(*rec.LockedUntil) {
			rec.LockedUntil = existing.LockedUntil
		}
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO progress_docs (student_id,course_id,module_id,doc,updated_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (student_id,course_id,module_id) DO UPDATE SET
		   doc=EXCLUDED.doc, updated_at=EXCLUDED.updated_at`,
		rec.StudentID, rec.CourseID, rec.ModuleID, string(doc), time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *DocRepo) List(ctx context.Context, studentID, courseID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM progress_docs WHERE student_id=$1 AND course_id=$2`, studentID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			continue // skip unreadable docs rather than failing the read
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *DocRepo) SetLockout(ctx context.Context, studentID, courseID, moduleID string, until time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rec, err := getDoc(ctx, tx, studentID, courseID, moduleID)
	if errors.Is(err, sql.ErrNoRows) {
		rec = Record{StudentID: studentID, CourseID: courseID, ModuleID: moduleID}
	} else if err != nil {
		return err
	}
	rec.LockedUntil = mergeLockout(rec.LockedUntil, until)
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO progress_docs (student_id,course_id,module_id,doc,updated_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (student_id,course_id,module_id) DO UPDATE SET
		   doc=EXCLUDED.doc, updated_at=EXCLUDED.updated_at`,
		studentID, courseID, moduleID, string(doc), time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func getDoc(ctx context.Context, tx *sql.Tx, studentID, courseID, moduleID string) (Record, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT doc FROM progress_docs WHERE student_id=$1 AND course_id=$2 AND module_id=$3`,
		studentID, courseID, moduleID)
	var doc string
	if err := row.Scan(&doc); err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
