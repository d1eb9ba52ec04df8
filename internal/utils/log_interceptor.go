// Package utils holds small helpers shared by the daemon and the CLI.
package utils

import (
	"bytes"
	"io"
	"strconv"
	"sync"
	"time"
)

// maxPending caps how much of an unterminated line is held before it is flushed as-is.
const maxPending = 1 << 20

// LogInterceptor prefixes every complete line written to it with a sequence number and a
// timestamp before passing it to the target. It backs the daemon's log file.
type LogInterceptor struct {
	mu      sync.Mutex
	target  io.Writer
	seq     uint64
	pending []byte
	now     func() time.Time
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target, now: time.Now}
}

// Write reports len(p) on success; partial lines stay buffered until their newline arrives.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.pending = append(i.pending, p...)
	for {
		idx := bytes.IndexByte(i.pending, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimRight(i.pending[:idx], "\r")
		if err := i.emit(line); err != nil {
			return 0, err
		}
		i.pending = i.pending[idx+1:]
	}

	if len(i.pending) > maxPending {
		if err := i.emit(i.pending); err != nil {
			return 0, err
		}
		i.pending = nil
	}
	return len(p), nil
}

// Close flushes a trailing unterminated line.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.pending) == 0 {
		return nil
	}
	err := i.emit(i.pending)
	i.pending = nil
	return err
}

func (i *LogInterceptor) emit(line []byte) error {
	i.seq++
	buf := make([]byte, 0, len(line)+48)
	buf = append(buf, "line="...)
	buf = strconv.AppendUint(buf, i.seq, 10)
	buf = append(buf, " time="...)
	buf = i.now().AppendFormat(buf, time.RFC3339)
	buf = append(buf, ' ')
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := i.target.Write(buf)
	return err
}
