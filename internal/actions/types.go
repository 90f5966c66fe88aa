// Package actions holds the side-effect collaborators a firing decision
// dispatches to: process termination, audio playback, and local/remote
// shutdown. The scheduling core only depends on the interfaces; everything
// here is best-effort and must never panic the trigger loop.
package actions

import (
	"context"

	"weekchime/internal/config"
)

// Terminator closes target processes before playback. Per-process errors
// are swallowed.
type Terminator interface {
	Terminate(ctx context.Context, names []string)
}

// Player starts playback and returns immediately; onFinished runs exactly
// once when playback ends (or fails to start). The scheduler never blocks
// on playback completion, it only chains the shutdown follow-up off the
// callback.
type Player interface {
	Play(ctx context.Context, ref string, onFinished func(err error))
}

// Shutdowner powers machines off after playback, gated by the engine's
// permission flags.
type Shutdowner interface {
	ShutdownRemote(ctx context.Context, hosts []config.RemoteHost)
	ShutdownLocal(ctx context.Context, delaySeconds int) error
}
