// Package trigger runs the polling loop: on a fixed cadence it asks the
// schedule engine whether a slot is due, and on a firing decision
// dispatches the side-effect chain (terminate targets, play audio, then
// shut down local/remote machines once playback finishes).
//
// The loop is the single consumer of the engine's firing path; every other
// reader of the schedule uses the pure projection calls.
package trigger
