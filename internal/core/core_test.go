package core_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/core/coretest"
)

func TestEncodeEnvelope(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	f, err := core.Encode("OnEnter", map[string]any{"id": 7}, now)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(f, &got))
	assert.Equal(t, "OnEnter", got["type"])
	data := got["data"].(map[string]any)
	assert.Equal(t, float64(1700000000123), data["timestamp"])
	assert.Equal(t, float64(7), data["msg"].(map[string]any)["id"])
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		typ     string
		data    string
		wantErr bool
	}{
		{name: "full", raw: `{"type":"Leave","data":{"a":1}}`, typ: "Leave", data: `{"a":1}`},
		{name: "no data", raw: `{"type":"HeartBeat"}`, typ: "HeartBeat", data: `{}`},
		{name: "null data", raw: `{"type":"HeartBeat","data":null}`, typ: "HeartBeat", data: `{}`},
		{name: "garbage", raw: `{"type":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := core.Decode([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.typ, in.Type)
			assert.JSONEq(t, tt.data, string(in.Data))
		})
	}
}

func TestCodeOf(t *testing.T) {
	c, ok := core.CodeOf(fmt.Errorf("wrapped: %w", core.RoomFull))
	assert.True(t, ok)
	assert.Equal(t, core.RoomFull, c)

	c, ok = core.CodeOf(fmt.Errorf("disk on fire"))
	assert.False(t, ok)
	assert.Equal(t, core.UnknownError, c)

	c, ok = core.CodeOf(nil)
	assert.True(t, ok)
	assert.Equal(t, core.OK, c)
}

func TestResultShape(t *testing.T) {
	b, err := json.Marshal(core.Failure(core.PartError, map[string]int{"count": 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":507,"msg":"operation partially failed","data":{"count":2}}`, string(b))
}

func TestSessionFinishRunsOnce(t *testing.T) {
	sess, _ := coretest.Session("c1")
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		calls int
		wins  int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sess.Finish(func() {
				mu.Lock()
				calls++
				mu.Unlock()
			}) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, wins)
}

func TestSessionBinding(t *testing.T) {
	sess, rec := coretest.Session("c1")
	_, ok := sess.User()
	assert.False(t, ok)

	sess.BindUser(3)
	sess.SetPendingRoom(9)
	uid, ok := sess.User()
	assert.True(t, ok)
	assert.EqualValues(t, 3, uid)

	sess.UnbindUser()
	_, ok = sess.User()
	assert.False(t, ok)
	_, pending := sess.PendingRoom()
	assert.False(t, pending)

	require.NoError(t, sess.Emit("HeartBeat", "pong"))
	rec.Close()
	assert.ErrorIs(t, sess.Emit("HeartBeat", "pong"), core.ErrClosed)
}
