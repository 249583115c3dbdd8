package engine

import (
	"fmt"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"nvr-kiosk/work/logger"
)

// ExecEngine runs one external player process per playback session (cvlc by
// default). It derives playback state from process lifetime: a freshly
// started process reports connecting until the warmup window passes, then
// playing until it exits.
type ExecEngine struct {
	command string
	args    []string
	warmup  time.Duration
	clk     clock.Clock
}

// session is the concrete handle type returned by ExecEngine.Play.
type session struct {
	cmd           *exec.Cmd
	startedAt     time.Time
	stopRequested atomic.Bool
	done          chan struct{}
	exitErr       error
}

// NewExec creates an exec-based engine adapter. warmup is how long a new
// process is reported as connecting before it counts as playing; it should
// roughly match the player's startup-to-first-frame time.
func NewExec(command string, args []string, warmup time.Duration) *ExecEngine {
	return &ExecEngine{
		command: command,
		args:    args,
		warmup:  warmup,
		clk:     clock.New(),
	}
}

// Play spawns the player process for the stream URL.
func (e *ExecEngine) Play(url string) (Handle, error) {
	argv := make([]string, 0, len(e.args)+1)
	argv = append(argv, e.args...)
	argv = append(argv, url)

	cmd := exec.Command(e.command, argv...)
	// Own process group so a kill takes child decoders down with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start player %s: %w", e.command, err)
	}

	s := &session{
		cmd:       cmd,
		startedAt: e.clk.Now(),
		done:      make(chan struct{}),
	}

	go func() {
		s.exitErr = cmd.Wait()
		close(s.done)
	}()

	logger.Debug("Player started: %s (pid %d)", e.command, cmd.Process.Pid)
	return s, nil
}

// Stop asks the player process to terminate. The session reports stopped
// once the process is gone.
func (e *ExecEngine) Stop(h Handle) {
	s, ok := h.(*session)
	if !ok || s == nil {
		return
	}
	if !s.stopRequested.CompareAndSwap(false, true) {
		return
	}

	select {
	case <-s.done:
		return
	default:
	}

	// Negative pid signals the whole process group.
	if err := syscall.Kill(-s.cmd.Process.Pid, syscall.SIGTERM); err != nil {
		logger.Debug("SIGTERM failed for pid %d: %v", s.cmd.Process.Pid, err)
	}

	// Escalate if the player ignores SIGTERM.
	go func() {
		select {
		case <-s.done:
		case <-time.After(3 * time.Second):
			syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
		}
	}()
}

// Release waits out the process exit so no zombie is left behind. Stop must
// have been called first for a live session.
func (e *ExecEngine) Release(h Handle) {
	s, ok := h.(*session)
	if !ok || s == nil {
		return
	}
	select {
	case <-s.done:
	default:
		// Caller skipped Stop; force the session down before freeing it.
		e.Stop(h)
		<-s.done
	}
}

// State derives the playback state from the process lifecycle.
func (e *ExecEngine) State(h Handle) State {
	s, ok := h.(*session)
	if !ok || s == nil {
		return StateUnknown
	}

	select {
	case <-s.done:
		if s.stopRequested.Load() {
			return StateStopped
		}
		if s.exitErr != nil {
			return StateError
		}
		return StateEnded
	default:
	}

	if e.clk.Since(s.startedAt) < e.warmup {
		return StateConnecting
	}
	return StatePlaying
}
