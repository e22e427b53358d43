package course

import "fmt"

type ModuleType string

const (
	TypeLecture           ModuleType = "lecture"
	TypeQuiz              ModuleType = "quiz"
	TypeInitialAssessment ModuleType = "initial_assessment"
	TypeFinalAssessment   ModuleType = "final_assessment"
)

// DefaultPassThreshold is the percentage a graded module requires before the
// next module unlocks. Modules may override it; zero means "use the default".
const DefaultPassThreshold = 70

type Module struct {
	ID              string     `json:"id"`
	Order           int        `json:"order"`
	Type            ModuleType `json:"type"`
	Title           string     `json:"title,omitempty"`
	PassThreshold   int        `json:"pass_threshold,omitempty"`
	Proctored       bool       `json:"proctored,omitempty"`
	Completed       bool       `json:"completed"`
	Score           *int       `json:"score,omitempty"`
	CompletedTopics []string   `json:"completed_topics,omitempty"`
}

// Graded reports whether the module carries an assessment score at all.
func (m Module) Graded() bool { return m.Score != nil }

func (m Module) Threshold() int {
	if m.PassThreshold > 0 {
		return m.PassThreshold
	}
	return DefaultPassThreshold
}

type Course struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Modules []Module `json:"modules"`
}

// Validate checks the ordering invariant: exactly one module per order k for
// each k in [0, len).
func (c Course) Validate() error {
	seen := make(map[int]string, len(c.Modules))
	for _, m := range c.Modules {
		if m.Order < 0 || m.Order >= len(c.Modules) {
			return fmt.Errorf("course %s: module %s order %d out of range [0,%d)", c.ID, m.ID, m.Order, len(c.Modules))
		}
		if prev, dup := seen[m.Order]; dup {
			return fmt.Errorf("course %s: modules %s and %s share order %d", c.ID, prev, m.ID, m.Order)
		}
		seen[m.Order] = m.ID
	}
	return nil
}

// Sorted returns the modules arranged by order. The course itself is not
// mutated; callers that trust Validate may index the result directly.
func (c Course) Sorted() []Module {
	out := make([]Module, len(c.Modules))
	for _, m := range c.Modules {
		if m.Order >= 0 && m.Order < len(out) {
			out[m.Order] = m
		}
	}
	return out
}
