package app_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/danmaku/internal/app"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/core/coretest"
	"github.com/dkeye/danmaku/internal/domain"
)

func newRoom(t *testing.T, capacity int) (*app.RoomManager, *app.Room, *core.Session) {
	t.Helper()
	rooms, err := app.NewRoomManager(3)
	require.NoError(t, err)
	room, err := rooms.Create(domain.User{ID: 1, NickName: "alice"}, domain.RoomSettings{Title: "t", Capacity: capacity})
	require.NoError(t, err)
	owner, _ := coretest.Session("owner")
	require.NoError(t, room.AttachStreamer(app.Member{User: 1, Name: "alice", Session: owner}))
	return rooms, room, owner
}

func viewer(id int) app.Member {
	sess, _ := coretest.Session(fmt.Sprintf("v%d", id))
	return app.Member{User: domain.UserID(id), Name: fmt.Sprintf("u%d", id), Session: sess}
}

func TestRoomEnterableGate(t *testing.T) {
	_, room, _ := newRoom(t, 5)
	_, err := room.AddViewer(viewer(2))
	assert.ErrorIs(t, err, core.RoomUnenterable)
	assert.Equal(t, 0, room.ViewerCount())

	room.SetEnterable(true)
	added, err := room.AddViewer(viewer(2))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestRoomCapacityNeverExceeded(t *testing.T) {
	_, room, _ := newRoom(t, 2)
	room.SetEnterable(true)

	var wg sync.WaitGroup
	var mu sync.Mutex
	full := 0
	for i := 2; i < 12; i++ {
		wg.Add(1)
		go func(m app.Member) {
			defer wg.Done()
			if _, err := room.AddViewer(m); err == core.RoomFull {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}(viewer(i))
	}
	wg.Wait()
	assert.Equal(t, 2, room.ViewerCount())
	assert.Equal(t, 8, full)
	assert.True(t, room.Full())
}

func TestRoomAddViewerIdempotent(t *testing.T) {
	_, room, _ := newRoom(t, 2)
	room.SetEnterable(true)
	m := viewer(2)
	added, err := room.AddViewer(m)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = room.AddViewer(m)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, room.ViewerCount())
}

func TestRoomRecipientsOrder(t *testing.T) {
	_, room, owner := newRoom(t, 5)
	room.SetEnterable(true)
	a, b := viewer(2), viewer(3)
	room.AddViewer(a)
	room.AddViewer(b)
	got := room.Recipients()
	require.Len(t, got, 3)
	assert.Same(t, a.Session, got[0])
	assert.Same(t, b.Session, got[1])
	assert.Same(t, owner, got[2])
}

func TestRoomDestructionPredicate(t *testing.T) {
	tests := []struct {
		name     string
		steps    []string
		vanished bool
	}{
		{name: "viewer leaves, streamer stays", steps: []string{"viewer"}},
		{name: "streamer leaves, viewer stays", steps: []string{"streamer"}},
		{name: "viewer then streamer", steps: []string{"viewer", "streamer"}, vanished: true},
		{name: "streamer then viewer", steps: []string{"streamer", "viewer"}, vanished: true},
		{name: "viewer twice", steps: []string{"viewer", "viewer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, room, owner := newRoom(t, 5)
			room.SetEnterable(true)
			v := viewer(2)
			_, err := room.AddViewer(v)
			require.NoError(t, err)

			vanishedCount := 0
			for _, step := range tt.steps {
				var vanished bool
				switch step {
				case "viewer":
					_, _, vanished = room.RemoveViewer(v.Session)
				case "streamer":
					_, vanished = room.DetachStreamer(owner)
				}
				if vanished {
					vanishedCount++
				}
			}
			if tt.vanished {
				assert.Equal(t, 1, vanishedCount)
				assert.True(t, room.Closed())
			} else {
				assert.Zero(t, vanishedCount)
				assert.False(t, room.Closed())
			}
		})
	}
}

func TestRoomResumeKeepsViewers(t *testing.T) {
	_, room, owner := newRoom(t, 5)
	room.SetEnterable(true)
	v := viewer(2)
	room.AddViewer(v)

	detached, vanished := room.DetachStreamer(owner)
	assert.True(t, detached)
	assert.False(t, vanished)
	_, ok := room.Streamer()
	assert.False(t, ok)

	again, _ := coretest.Session("owner-2")
	require.NoError(t, room.AttachStreamer(app.Member{User: 1, Session: again}))
	s, ok := room.Streamer()
	require.True(t, ok)
	assert.Same(t, again, s.Session)
	assert.Equal(t, 1, room.ViewerCount())

	// a stale connection cannot detach the new binding
	detached, _ = room.DetachStreamer(owner)
	assert.False(t, detached)
}

func TestRoomShutdown(t *testing.T) {
	_, room, _ := newRoom(t, 5)
	room.SetEnterable(true)
	room.AddViewer(viewer(2))
	room.AddViewer(viewer(3))

	evicted, ok := room.Shutdown()
	assert.True(t, ok)
	assert.Len(t, evicted, 2)
	assert.Equal(t, 0, room.ViewerCount())
	_, ok = room.Shutdown()
	assert.False(t, ok)

	_, err := room.AddViewer(viewer(4))
	assert.ErrorIs(t, err, core.RoomNotExist)
	assert.ErrorIs(t, room.AttachStreamer(viewer(1)), core.RoomNotExist)
}

func TestRoomDanmakuTruncation(t *testing.T) {
	_, room, _ := newRoom(t, 5)
	for i := 0; i < 7; i++ {
		room.AppendDanmaku(domain.Danmaku{Content: fmt.Sprint(i), Time: time.Now().UnixMilli()})
	}
	got := room.RecentDanmaku()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"4", "5", "6"}, []string{got[0].Content, got[1].Content, got[2].Content})
}

func TestRoomPasswordAndInfo(t *testing.T) {
	rooms, err := app.NewRoomManager(0)
	require.NoError(t, err)
	room, err := rooms.Create(domain.User{ID: 4, NickName: "dora"}, domain.RoomSettings{Title: "x", Password: "pw", Capacity: 3, IsPublic: true, Mode: 2})
	require.NoError(t, err)

	assert.True(t, room.CheckPassword("pw"))
	assert.False(t, room.CheckPassword("nope"))

	info := room.Info(false)
	assert.True(t, info.PasswordNeeded)
	assert.Empty(t, info.InviteCode)
	assert.Equal(t, "dora", info.CreatorName)
	assert.Equal(t, domain.StreamMode(2), info.Mode)
	assert.Equal(t, room.InviteCode(), room.Info(true).InviteCode)

	room.SetCapture(domain.Capture{RoomID: 4, Image: "data:"})
	c, ok := room.Capture()
	assert.True(t, ok)
	assert.Equal(t, "data:", c.Image)
}
