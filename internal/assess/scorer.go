package assess

import (
	"math"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
)

// PassThreshold is the percentage an attempt needs to pass a graded module.
const PassThreshold = 70

type Question struct {
	ID      string    `json:"id"`
	Prompt  string    `json:"prompt,omitempty"`
	Options []string  `json:"options"`
	Key     AnswerKey `json:"correct_answer"`
	Topic   string    `json:"topic,omitempty"`
}

// QuestionResult is the per-question breakdown review UIs render.
type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Selected   int    `json:"selected,omitempty"`
	Correct    bool   `json:"correct"`
}

type Result struct {
	Score     int              `json:"score"`
	Passed    bool             `json:"passed"`
	Correct   int              `json:"correct"`
	Total     int              `json:"total"`
	Breakdown []QuestionResult `json:"breakdown"`
}

// Score grades a submitted answer set. Answers are sparse: a missing question
// id means unanswered, which counts as incorrect. Malformed (out of range)
// indices are incorrect too; this function never fails.
//
// Initial assessments are diagnostics: they report the raw score but are
// always passed for gating purposes.
func Score(moduleType course.ModuleType, questions []Question, answers map[string]int) Result {
	res := Result{
		Total:     len(questions),
		Breakdown: make([]QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		qr := QuestionResult{QuestionID: q.ID}
		if sel, ok := answers[q.ID]; ok {
			qr.Answered = true
			qr.Selected = sel
			qr.Correct = q.Key.Matches(sel, q.Options)
		}
		if qr.Correct {
			res.Correct++
		}
		res.Breakdown = append(res.Breakdown, qr)
	}
	total := res.Total
	if total < 1 {
		total = 1
	}
	res.Score = int(math.Round(float64(res.Correct) / float64(total) * 100))
	res.Passed = res.Score >= PassThreshold || moduleType == course.TypeInitialAssessment
	return res
}
