package assess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

var ErrModuleNotFound = errors.New("module not found")

// QuestionBank is a read-only view into the content store's question data.
// Authoring lives elsewhere; this engine only fetches.
type QuestionBank interface {
	Questions(ctx context.Context, moduleID string) ([]Question, error)
}

type SQLQuestionBank struct {
	db *sql.DB
}

func NewSQLQuestionBank(db *sql.DB) *SQLQuestionBank { return &SQLQuestionBank{db: db} }

func (b *SQLQuestionBank) Questions(ctx context.Context, moduleID string) ([]Question, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT questions_json FROM module_questions WHERE module_id=$1`, moduleID)
	var qjson string
	if err := row.Scan(&qjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	var qs []Question
	if err := json.Unmarshal([]byte(qjson), &qs); err != nil {
		return nil, err
	}
	return qs, nil
}
