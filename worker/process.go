package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StopTimeout is how long Close waits for the worker to exit after its
// stdin is closed before killing it
const StopTimeout = 2 * time.Second

// Process is a worker running as a child process with requests written to
// its stdin and responses read from its stdout
type Process struct {
	*Client

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	log     logrus.FieldLogger
	exited  chan struct{}
	waitErr error
	once    sync.Once
	err     error
}

// Start launches the worker command.  Lines the worker writes to stderr are
// logged at a level taken from their [ERROR] or [WARN] marker.
func Start(ctx context.Context, command []string, log logrus.FieldLogger) (*Process, error) {

	if len(command) == 0 {
		return nil, errors.New("empty worker command")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)

	stdin, err := cmd.StdinPipe()

	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()

	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()

	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %s: %w", command[0], err)
	}

	p := &Process{
		Client: NewClient(stdin, bufio.NewReader(stdout)),
		cmd:    cmd,
		stdin:  stdin,
		exited: make(chan struct{}),
		log: log.WithFields(logrus.Fields{
			"worker": command[0],
			"pid":    cmd.Process.Pid,
		}),
	}

	p.log.Info("Worker process started")

	go p.wait(stderr)

	return p, nil
}

// wait logs stderr until the worker closes it then reaps the process
func (p *Process) wait(stderr io.Reader) {

	logStderr(stderr, p.log)

	p.waitErr = p.cmd.Wait()

	if p.waitErr != nil {
		p.log.WithError(p.waitErr).Debug("Worker process exited")
	} else {
		p.log.Debug("Worker process exited cleanly")
	}

	close(p.exited)
}

// logStderr logs each line read from r at the level its marker indicates
func logStderr(r io.Reader, log logrus.FieldLogger) {

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			log.Error(line)
		case strings.Contains(line, "[WARN]") || strings.Contains(line, "[WARNING]"):
			log.Warn(line)
		default:
			log.Debug(line)
		}
	}

	if err := scanner.Err(); err != nil {
		log.WithError(err).Debug("Error reading worker stderr")
	}
}

// Exited is closed once the worker process has exited
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Close closes the worker's stdin and waits up to StopTimeout for it to exit
// before killing it.  It is safe to call more than once.
func (p *Process) Close() error {

	p.once.Do(func() {
		p.err = p.stdin.Close()

		select {
		case <-p.exited:
		case <-time.After(StopTimeout):
			p.log.Warn("Worker did not exit, killing process")

			if err := p.cmd.Process.Kill(); err != nil {
				p.err = errors.Join(p.err, fmt.Errorf("failed to kill worker: %w", err))
			}

			<-p.exited
		}

		p.log.Info("Worker process stopped")
	})

	return p.err
}
