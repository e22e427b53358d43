package course

import "time"

// CanAccess decides whether the module at index is currently reachable.
// Pure over its inputs: no I/O, no clock, no retries.
//
// Rules:
//   - index 0 is always open
//   - admins bypass gating entirely
//   - otherwise the previous module must be completed, and if it carries a
//     score, the score must meet its threshold — unless the previous module is
//     an initial assessment, which is a diagnostic and never blocks.
func CanAccess(modules []Module, index int, role string) bool {
	if index < 0 || index >= len(modules) {
		return false
	}
	if index == 0 {
		return true
	}
	if role == "admin" {
		return true
	}
	prev := modules[index-1]
	if !prev.Completed {
		return false
	}
	if prev.Score == nil {
		return true
	}
	if prev.Type == TypeInitialAssessment {
		return true
	}
	return *prev.Score >= prev.Threshold()
}

// LockoutRemaining reports how long a lockout window keeps assessment entry
// closed. Zero means entry is permitted.
func LockoutRemaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if lockedUntil == nil || !now.Before(*lockedUntil) {
		return 0
	}
	return lockedUntil.Sub(now)
}
