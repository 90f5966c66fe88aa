// Package schedule is the resolution engine: given the persisted snapshot
// (day slots, holiday calendar, playlist rotation) it decides which
// day-slots are eligible to fire, what audio each one resolves to, and
// projects upcoming runs for previews.
//
// Read paths (IsEligible, IsHoliday, ResolveAudio, UpcomingRuns, NextRun)
// are pure and safe to call from any goroutine. Consume paths (CheckAndFire,
// MarkFired) run their whole read-modify-write through the config store
// under one lock hold, so a firing decision and its state change are
// committed together and racing evaluations cannot both fire.
package schedule
