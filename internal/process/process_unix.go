//go:build unix

package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/happyhackingspace/runbox/pkg/executor"
)

// Run executes command and blocks until it has exited and both output
// streams are drained. A non-nil error means the process could not be run;
// crashes and non-zero exits are results.
func (c *Controller) Run(ctx context.Context, command executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	if len(command.Args) == 0 {
		return nil, ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(command.Args[0], command.Args[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = append(c.baseEnv(), command.Env...)
	cmd.SysProcAttr = sysProcAttr()
	if command.Stdin != "" {
		cmd.Stdin = strings.NewReader(command.Stdin)
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	start := time.Now()
	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{outR, outW, errR, errW} {
			f.Close()
		}
		return nil, fmt.Errorf("start %s: %w", command.Args[0], err)
	}
	outW.Close()
	errW.Close()

	capture := executor.NewCapture(command.MaxOutputBytes, handler)
	var drain sync.WaitGroup
	drain.Add(2)
	go copyStream(&drain, capture.Stdout(), outR)
	go copyStream(&drain, capture.Stderr(), errR)
	drained := make(chan struct{})
	go func() {
		drain.Wait()
		close(drained)
	}()

	pgid := cmd.Process.Pid
	var canceled atomic.Bool
	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			canceled.Store(true)
			killGroup(pgid)
		case <-exited:
		}
	}()

	waitErr := cmd.Wait()
	close(exited)

	// Background children may still hold the pipes open. Those that left
	// the group survive the kill, so the drain is bounded.
	killGroup(pgid)
	delay := time.NewTimer(c.waitDelay())
	select {
	case <-drained:
	case <-delay.C:
		outR.Close()
		errR.Close()
		<-drained
	case <-ctx.Done():
		outR.Close()
		errR.Close()
		<-drained
	}
	delay.Stop()
	outR.Close()
	errR.Close()
	capture.Close()

	state := cmd.ProcessState
	if state == nil {
		return nil, fmt.Errorf("wait %s: %w", command.Args[0], waitErr)
	}

	result := &executor.ExecutionResult{Duration: time.Since(start)}
	capture.Fill(result)
	classify(result, state)
	result.Canceled = canceled.Load() && result.ExitSignal != nil
	return result, nil
}

// classify records either the exit code or the terminating signal.
func classify(r *executor.ExecutionResult, state *os.ProcessState) {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		r.SetSignal(SignalName(ws.Signal()))
		return
	}
	r.SetExitCode(state.ExitCode())
}

// SignalName returns the conventional name of sig, such as "SIGSEGV".
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("SIG%d", int(sig))
}

func killGroup(pgid int) {
	_ = unix.Kill(-pgid, unix.SIGKILL)
}
