package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/roomchat/internal/core"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	mu      sync.Mutex
	frames  []core.Frame
	sendErr error
	closed  bool
}

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockConn) received() []core.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Frame(nil), m.frames...)
}

func decode[T any](t *testing.T, f core.Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f, &v))
	return v
}
