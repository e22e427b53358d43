package course

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestCanAccessFirstModuleAlwaysOpen(t *testing.T) {
	mods := []Module{
		{ID: "m0", Order: 0, Type: TypeLecture},
		{ID: "m1", Order: 1, Type: TypeQuiz},
	}
	assert.True(t, CanAccess(mods, 0, "student"))
}

func TestCanAccessOutOfRange(t *testing.T) {
	mods := []Module{{ID: "m0", Order: 0, Type: TypeLecture}}
	assert.False(t, CanAccess(mods, -1, "student"))
	assert.False(t, CanAccess(mods, 1, "student"))
	assert.False(t, CanAccess(nil, 0, "student"))
}

func TestCanAccessAdminBypass(t *testing.T) {
	mods := []Module{
		{ID: "m0", Order: 0, Type: TypeQuiz, Completed: false},
		{ID: "m1", Order: 1, Type: TypeLecture},
	}
	assert.False(t, CanAccess(mods, 1, "student"))
	assert.True(t, CanAccess(mods, 1, "admin"))
}

func TestCanAccessGating(t *testing.T) {
	cases := []struct {
		name string
		prev Module
		want bool
	}{
		{"incomplete blocks", Module{Type: TypeLecture, Completed: false}, false},
		{"completed ungraded passes", Module{Type: TypeLecture, Completed: true}, true},
		{"completed above threshold passes", Module{Type: TypeQuiz, Completed: true, Score: intp(85)}, true},
		{"completed at threshold passes", Module{Type: TypeQuiz, Completed: true, Score: intp(70)}, true},
		{"completed below threshold blocks", Module{Type: TypeQuiz, Completed: true, Score: intp(69)}, false},
		{"initial assessment never blocks", Module{Type: TypeInitialAssessment, Completed: true, Score: intp(10)}, true},
		{"initial assessment incomplete still blocks", Module{Type: TypeInitialAssessment, Completed: false, Score: intp(90)}, false},
		{"final assessment below threshold blocks", Module{Type: TypeFinalAssessment, Completed: true, Score: intp(50)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.prev.ID = "m0"
			mods := []Module{tc.prev, {ID: "m1", Order: 1, Type: TypeLecture}}
			assert.Equal(t, tc.want, CanAccess(mods, 1, "student"))
		})
	}
}

func TestCanAccessCustomThreshold(t *testing.T) {
	mods := []Module{
		{ID: "m0", Order: 0, Type: TypeQuiz, PassThreshold: 80, Completed: true, Score: intp(75)},
		{ID: "m1", Order: 1, Type: TypeLecture},
	}
	assert.False(t, CanAccess(mods, 1, "student"))
	mods[0].Score = intp(80)
	assert.True(t, CanAccess(mods, 1, "student"))
}

// Scenario: 65% on a standard quiz keeps the next module locked; a retake at
// 75% unlocks it.
func TestRetakeUnlocksNextModule(t *testing.T) {
	mods := []Module{
		{ID: "m0", Order: 0, Type: TypeQuiz, Completed: true, Score: intp(65)},
		{ID: "m1", Order: 1, Type: TypeLecture},
	}
	assert.False(t, CanAccess(mods, 1, "student"))
	mods[0].Score = intp(75)
	assert.True(t, CanAccess(mods, 1, "student"))
}

func TestCourseValidate(t *testing.T) {
	ok := Course{ID: "c1", Modules: []Module{
		{ID: "a", Order: 1}, {ID: "b", Order: 0}, {ID: "c", Order: 2},
	}}
	assert.NoError(t, ok.Validate())

	dup := Course{ID: "c2", Modules: []Module{{ID: "a", Order: 0}, {ID: "b", Order: 0}}}
	assert.Error(t, dup.Validate())

	gap := Course{ID: "c3", Modules: []Module{{ID: "a", Order: 0}, {ID: "b", Order: 2}}}
	assert.Error(t, gap.Validate())
}

func TestSortedArrangesByOrder(t *testing.T) {
	c := Course{Modules: []Module{{ID: "b", Order: 1}, {ID: "a", Order: 0}}}
	got := c.Sorted()
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestLockoutRemaining(t *testing.T) {
	now := time.Now()
	future := now.Add(90 * time.Minute)
	past := now.Add(-time.Minute)

	assert.Equal(t, time.Duration(0), LockoutRemaining(nil, now))
	assert.Equal(t, time.Duration(0), LockoutRemaining(&past, now))
	assert.Equal(t, 90*time.Minute, LockoutRemaining(&future, now))
}
