package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// fakeConn captures emitted frames for assertions.
type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
}

type capturedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) captured(t *testing.T) []capturedFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedFrame, 0, len(c.frames))
	for _, raw := range c.frames {
		var f capturedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

func (c *fakeConn) count(t *testing.T, event string) int {
	t.Helper()
	n := 0
	for _, f := range c.captured(t) {
		if f.Event == event {
			n++
		}
	}
	return n
}

// last unmarshals the most recent frame of the given event into v,
// reporting whether one was seen at all.
func (c *fakeConn) last(t *testing.T, event string, v any) bool {
	t.Helper()
	frames := c.captured(t)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event != event {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(frames[i].Data, v))
		}
		return true
	}
	return false
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestEngine(t *testing.T) (*Engine, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "chat-data.json")
	store.Restore()
	return NewEngine(store), fs
}

func connect(e *Engine, id string) *fakeConn {
	conn := &fakeConn{}
	e.Connect(SessionID(id), conn)
	return conn
}

func connectAs(e *Engine, id, name string) *fakeConn {
	conn := connect(e, id)
	e.RegisterUser(SessionID(id), RegisterUserPayload{Username: name})
	return conn
}
