package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"k8s.io/klog/v2"
)

var (
	ErrTimeout  = errors.New("timeout exceeded")
	ErrNotFound = errors.New("pattern not found")
)

const tailSize = 512

var maxBufferSize = 1 << 20

// Each call blocks until its literal or pattern shows up in the not yet
// consumed output, then discards everything up to the end of the match.
// A zero timeout selects DefaultTimeout.
type Session interface {
	ExpectExact(literal string, timeout time.Duration) error
	Expect(pattern *regexp.Regexp, timeout time.Duration) ([]string, error)
	DefaultTimeout() time.Duration
}

type ExpectError struct {
	Want    string
	Timeout time.Duration
	Tail    string
	Dropped int64
	Cause   error
	Err     error
}

func (e *ExpectError) Error() string {
	var msg string
	if errors.Is(e.Err, ErrTimeout) {
		msg = fmt.Sprintf("expect: timed out after %v\n    waiting for: %s", e.Timeout, e.Want)
	} else {
		msg = fmt.Sprintf("expect: %v\n    waiting for: %s", e.Err, e.Want)
		if e.Cause != nil {
			msg += fmt.Sprintf("\n    stream closed: %v", e.Cause)
		}
	}
	if e.Dropped > 0 {
		msg += fmt.Sprintf("\n    %d bytes dropped after the buffer reached its limit", e.Dropped)
	}
	if e.Tail == "" {
		return msg + "\n    unconsumed output: (none)"
	}
	return msg + "\n    unconsumed output:\n" + indent(e.Tail)
}

func (e *ExpectError) Unwrap() error {
	return e.Err
}

type streamSession struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped int64
	readErr error

	notify  chan struct{}
	done    chan struct{}
	timeout time.Duration
	echo    io.Writer
	closer  func() error
}

func newStreamSession(r io.Reader, timeout time.Duration, echo io.Writer) *streamSession {
	s := &streamSession{
		limit:   maxBufferSize,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		timeout: timeout,
		echo:    echo,
	}
	go s.read(r)
	return s
}

func openFileSession(path string, timeout time.Duration, echo io.Writer) (*streamSession, error) {
	if path == "-" {
		return newStreamSession(os.Stdin, timeout, echo), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := newStreamSession(f, timeout, echo)
	s.closer = f.Close
	return s, nil
}

// The command runs in its own process group, which Close kills as a whole.
func openCommandSession(command string, timeout time.Duration, echo io.Writer) (*streamSession, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start '%s': %w", command, err)
	}
	// Close the write end in the parent so we can read EOF.
	pw.Close()
	klog.V(2).InfoS("Started device command", "command", command, "pid", cmd.Process.Pid)

	s := newStreamSession(pr, timeout, echo)
	s.closer = func() error {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		_ = cmd.Wait()
		return pr.Close()
	}
	return s, nil
}

func (s *streamSession) read(r io.Reader) {
	defer close(s.done)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if s.echo != nil {
				_, _ = s.echo.Write(chunk[:n])
			}
			s.mu.Lock()
			s.buf = append(s.buf, chunk[:n]...)
			if over := len(s.buf) - s.limit; over > 0 {
				s.dropped += int64(over)
				s.buf = append([]byte(nil), s.buf[over:]...)
			}
			s.mu.Unlock()
			select {
			case s.notify <- struct{}{}:
			default:
			}
		}
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
	}
}

func (s *streamSession) DefaultTimeout() time.Duration {
	return s.timeout
}

func (s *streamSession) ExpectExact(literal string, timeout time.Duration) error {
	needle := []byte(literal)
	_, err := s.wait(fmt.Sprintf("%q", literal), timeout, func(buf []byte) (int, []string) {
		i := bytes.Index(buf, needle)
		if i < 0 {
			return -1, nil
		}
		return i + len(needle), nil
	})
	return err
}

func (s *streamSession) Expect(pattern *regexp.Regexp, timeout time.Duration) ([]string, error) {
	return s.wait(fmt.Sprintf("regexp %q", pattern.String()), timeout, func(buf []byte) (int, []string) {
		loc := pattern.FindSubmatchIndex(buf)
		if loc == nil {
			return -1, nil
		}
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = string(buf[loc[2*i]:loc[2*i+1]])
			}
		}
		return loc[1], groups
	})
}

func (s *streamSession) wait(want string, timeout time.Duration, match func([]byte) (int, []string)) ([]string, error) {
	if timeout <= 0 {
		timeout = s.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		end, groups := match(s.buf)
		if end >= 0 {
			s.buf = append([]byte(nil), s.buf[end:]...)
			s.mu.Unlock()
			return groups, nil
		}
		readErr := s.readErr
		tail, dropped := s.tail(), s.dropped
		s.mu.Unlock()

		if readErr != nil {
			return nil, &ExpectError{Want: want, Timeout: timeout, Tail: tail, Dropped: dropped, Cause: readErr, Err: ErrNotFound}
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-timer.C:
			s.mu.Lock()
			tail, dropped = s.tail(), s.dropped
			s.mu.Unlock()
			return nil, &ExpectError{Want: want, Timeout: timeout, Tail: tail, Dropped: dropped, Err: ErrTimeout}
		}
	}
}

// tail must be called with mu held.
func (s *streamSession) tail() string {
	b := s.buf
	if len(b) > tailSize {
		b = b[len(b)-tailSize:]
	}
	return string(b)
}

func (s *streamSession) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + strings.TrimRight(l, "\r")
	}
	return strings.Join(lines, "\n")
}
