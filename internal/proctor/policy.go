package proctor

import (
	"time"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
)

const (
	lockoutFinal    = 3 * time.Hour
	lockoutStandard = time.Hour
)

// LockoutDuration maps assessment criticality to the penalty window. Total:
// unrecognized types land in the standard bucket.
func LockoutDuration(t course.ModuleType) time.Duration {
	if t == course.TypeFinalAssessment {
		return lockoutFinal
	}
	return lockoutStandard
}
