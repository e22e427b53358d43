package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

var ErrCourseNotFound = errors.New("course not found")

// ContentStore is the narrow read-only interface onto the external content
// system. The engine never authors or mutates course content.
type ContentStore interface {
	GetCourse(ctx context.Context, id string) (Course, error)
}

// SQLContentStore reads the content mirror table maintained by the authoring
// side. Modules are stored as one JSON column per course.
type SQLContentStore struct {
	db *sql.DB
}

func NewSQLContentStore(db *sql.DB) *SQLContentStore { return &SQLContentStore{db: db} }

func (s *SQLContentStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,modules_json FROM courses WHERE id=$1`, id)
	var c Course
	var mjson string
	if err := row.Scan(&c.ID, &c.Title, &mjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrCourseNotFound
		}
		return Course{}, err
	}
	if err := json.Unmarshal([]byte(mjson), &c.Modules); err != nil {
		return Course{}, err
	}
	return c, nil
}
