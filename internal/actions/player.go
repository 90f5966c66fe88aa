package actions

import (
	"context"
	"errors"
	"os"
	"os/exec"

	logx "weekchime/pkg/logx"
)

// ExecPlayer shells out to an external audio player and invokes onFinished
// when the process exits. Playback is fire-and-forget from the caller's
// perspective.
type ExecPlayer struct {
	// Command is the player binary; Args are prepended before the file path.
	Command string
	Args    []string

	log logx.Logger
}

func NewExecPlayer(log logx.Logger) *ExecPlayer {
	// ffplay exits on its own once the track ends, which is exactly the
	// "on finished" hook the shutdown follow-up needs.
	return &ExecPlayer{
		Command: "ffplay",
		Args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet"},
		log:     log,
	}
}

func (p *ExecPlayer) Play(ctx context.Context, ref string, onFinished func(err error)) {
	if onFinished == nil {
		onFinished = func(error) {}
	}
	if ref == "" {
		// Nothing to play; let the follow-up run immediately.
		onFinished(nil)
		return
	}
	if _, err := os.Stat(ref); err != nil {
		if !p.log.IsZero() {
			p.log.Warn("audio file missing", logx.String("ref", ref), logx.Err(err))
		}
		onFinished(err)
		return
	}

	args := append(append([]string(nil), p.Args...), ref)
	cmd := exec.CommandContext(ctx, p.Command, args...)
	if err := cmd.Start(); err != nil {
		if !p.log.IsZero() {
			p.log.Error("player failed to start", logx.String("ref", ref), logx.Err(err))
		}
		onFinished(err)
		return
	}
	if !p.log.IsZero() {
		p.log.Info("playback started", logx.String("ref", ref))
	}

	go func() {
		err := cmd.Wait()
		var exit *exec.ExitError
		if err != nil && !errors.As(err, &exit) && !p.log.IsZero() {
			p.log.Warn("playback ended with error", logx.String("ref", ref), logx.Err(err))
		}
		if !p.log.IsZero() {
			p.log.Info("playback finished", logx.String("ref", ref))
		}
		onFinished(err)
	}()
}
