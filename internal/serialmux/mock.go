package serialmux

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kiniou-labs/level.report/internal/monitoring"
)

// MockSerialPort simulates the sensor bridge for dev mode and tests: every
// measure command written to the port produces the next fixture line on the
// read side, cycling when the fixtures run out. Temperature pushes and
// resets are acknowledged silently, like the real bridge.
type MockSerialPort struct {
	mu       sync.Mutex
	fixtures []string
	next     int
	closed   bool

	reader *io.PipeReader
	writer *io.PipeWriter
}

// NewMockSerialPort builds a mock bridge whose echo reports replay the
// given fixture lines.
func NewMockSerialPort(fixtures []string) *MockSerialPort {
	r, w := io.Pipe()
	return &MockSerialPort{
		fixtures: fixtures,
		reader:   r,
		writer:   w,
	}
}

// Read returns bridge output: one fixture line per measure command.
func (m *MockSerialPort) Read(p []byte) (int, error) {
	return m.reader.Read(p)
}

// Write accepts command lines and reacts the way the bridge firmware does.
func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("mock serial port is closed")
	}

	for _, command := range strings.Fields(string(p)) {
		switch {
		case command == "M":
			line := m.nextFixtureLocked()
			// Pipe writes block until the mux scanner reads, so respond
			// from a goroutine to keep Write non-blocking.
			go func() {
				_, _ = io.WriteString(m.writer, line+"\n")
			}()
		case strings.HasPrefix(command, "T="):
			monitoring.Logf("mock bridge: temperature push %q", command)
		case command == "R":
			m.next = 0
		default:
			monitoring.Logf("mock bridge: ignoring command %q", command)
		}
	}
	return len(p), nil
}

// Close shuts both ends of the mock pipe.
func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	_ = m.writer.Close()
	return m.reader.Close()
}

func (m *MockSerialPort) nextFixtureLocked() string {
	if len(m.fixtures) == 0 {
		return "0"
	}
	line := m.fixtures[m.next]
	m.next = (m.next + 1) % len(m.fixtures)
	return line
}

// NewMockSerialMux creates a SerialMux backed by a mock bridge replaying
// the given fixture data (one echo duration per line, in microseconds).
func NewMockSerialMux(data []byte) *SerialMux[*MockSerialPort] {
	var fixtures []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fixtures = append(fixtures, line)
	}
	return NewSerialMux(NewMockSerialPort(fixtures))
}
