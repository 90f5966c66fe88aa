package actions

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	logx "weekchime/pkg/logx"
)

// ProcessTerminator kills processes by image name through the platform's
// native tool (taskkill on Windows, pkill elsewhere).
type ProcessTerminator struct {
	log logx.Logger
}

func NewProcessTerminator(log logx.Logger) *ProcessTerminator {
	return &ProcessTerminator{log: log}
}

func (t *ProcessTerminator) Terminate(ctx context.Context, names []string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var cmd *exec.Cmd
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(ctx, "taskkill", "/IM", name, "/F")
		} else {
			// Process names in the kill list are Windows-style; strip the
			// extension so they still match on unix.
			cmd = exec.CommandContext(ctx, "pkill", "-x", strings.TrimSuffix(name, ".exe"))
		}
		if err := cmd.Run(); err != nil {
			// Not running is the common case; keep it quiet.
			if !t.log.IsZero() {
				t.log.Debug("terminate skipped", logx.String("target", name), logx.Err(err))
			}
			continue
		}
		if !t.log.IsZero() {
			t.log.Info("terminated target process", logx.String("target", name))
		}
	}
}
