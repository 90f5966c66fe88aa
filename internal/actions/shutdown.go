package actions

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"weekchime/internal/config"
	logx "weekchime/pkg/logx"
)

const sshDialTimeout = 10 * time.Second

// SystemShutdown powers machines off: remote hosts over SSH (or the
// Windows remote-shutdown tool), the local machine through the platform
// shutdown command. All failures are logged and swallowed; one bad host
// never blocks the rest.
type SystemShutdown struct {
	log logx.Logger
}

func NewSystemShutdown(log logx.Logger) *SystemShutdown {
	return &SystemShutdown{log: log}
}

func (s *SystemShutdown) ShutdownRemote(ctx context.Context, hosts []config.RemoteHost) {
	for _, h := range hosts {
		if strings.TrimSpace(h.Host) == "" {
			continue
		}
		var err error
		switch strings.ToLower(strings.TrimSpace(h.Method)) {
		case "", "ssh":
			err = s.shutdownSSH(ctx, h)
		case "winrm":
			err = s.shutdownWinRM(ctx, h)
		default:
			err = fmt.Errorf("unknown method %q", h.Method)
		}
		if err != nil {
			if !s.log.IsZero() {
				s.log.Warn("remote shutdown failed", logx.String("host", h.Host), logx.Err(err))
			}
			continue
		}
		if !s.log.IsZero() {
			s.log.Info("remote shutdown sent", logx.String("host", h.Host))
		}
	}
}

func (s *SystemShutdown) shutdownSSH(ctx context.Context, h config.RemoteHost) error {
	addr := h.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	cfg := &ssh.ClientConfig{
		User: h.Username,
		Auth: []ssh.AuthMethod{ssh.Password(h.Password)},
		// Target machines are on the local network and about to power off;
		// pinned host keys are not workable here.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshDialTimeout,
	}

	dialer := net.Dialer{Timeout: sshDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer sess.Close()

	// The connection drops as the host goes down; that is not a failure.
	if err := sess.Run("shutdown -h now"); err != nil {
		var exitErr *ssh.ExitError
		if !strings.Contains(err.Error(), "EOF") && !errors.As(err, &exitErr) {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}

func (s *SystemShutdown) shutdownWinRM(ctx context.Context, h config.RemoteHost) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("winrm method requires a windows host")
	}
	return exec.CommandContext(ctx, "shutdown", `/m`, `\\`+h.Host, "/s", "/t", "0").Run()
}

// ShutdownLocal powers off this machine after the grace period.
func (s *SystemShutdown) ShutdownLocal(ctx context.Context, delaySeconds int) error {
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	if !s.log.IsZero() {
		s.log.Info("local shutdown requested", logx.Int("delay_s", delaySeconds))
	}
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "shutdown", "/s", "/t", strconv.Itoa(delaySeconds)).Run()
	}
	if delaySeconds > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(delaySeconds) * time.Second):
		}
	}
	return exec.CommandContext(ctx, "shutdown", "-h", "now").Run()
}
