package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/danmaku/internal/adapters/rtc"
	"github.com/dkeye/danmaku/internal/app"
	"github.com/dkeye/danmaku/internal/app/orch"
	"github.com/dkeye/danmaku/internal/auth"
	"github.com/dkeye/danmaku/internal/captcha"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/core/coretest"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/live"
	"github.com/dkeye/danmaku/internal/mail"
	"github.com/dkeye/danmaku/internal/storage"
)

func newTestServer(t *testing.T) (*SignalWSController, string) {
	t.Helper()
	db, err := storage.Open(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() { _ = storage.Close(db) })

	rooms, err := app.NewRoomManager(0)
	require.NoError(t, err)
	sched := captcha.NewScheduler()
	t.Cleanup(sched.Stop)
	store, err := captcha.NewStore(sched, captcha.Options{})
	require.NoError(t, err)

	o := &orch.Orchestrator{
		Registry:      app.NewRegistry(),
		Rooms:         rooms,
		Policy:        app.PolicyFor("drop"),
		Users:         storage.NewUserRepository(db),
		Logs:          storage.NewLogRepository(db),
		Tokens:        auth.NewTokenManager("test-secret", time.Hour),
		Hasher:        auth.NewPasswordHasher(4),
		Captcha:       store,
		Mailer:        mail.LogMailer{},
		Streams:       live.NewSigner(live.Config{}),
		ICE:           rtc.ICEServers(nil),
		AdminPassword: "root",
	}
	ctl := NewSignalWSController(o, Options{})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return ctl, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(typ string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"type": typ, "data": data}))
}

// expect reads until an envelope of typ arrives, skipping pushed events of other types.
func (c *wsClient) expect(typ string) coretest.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env coretest.Envelope
		require.NoError(c.t, c.conn.ReadJSON(&env), "waiting for %s", typ)
		if env.Type == typ {
			return env
		}
	}
}

func (c *wsClient) call(typ string, data any) (core.Code, json.RawMessage) {
	c.t.Helper()
	c.send(typ, data)
	res, body := c.expect(typ).Result()
	return res.Code, body
}

func account(t *testing.T, ctl *SignalWSController, name string) (string, domain.UserID) {
	t.Helper()
	p, err := ctl.Orch.Register(name+"@example.com", name, "secret1")
	require.NoError(t, err)
	res, err := ctl.Orch.Login(core.NewSession("login", coretest.NewRecorder()), name, "secret1")
	require.NoError(t, err)
	return res.Token, p.ID
}

func (c *wsClient) handshake(token string) {
	c.t.Helper()
	c.send("GetInfo", map[string]any{"type": "client", "jwt": token})
	res, _ := c.expect("GetInfoResult").Result()
	require.Equal(c.t, core.OK, res.Code)
}

func TestRoomFlowOverWebsocket(t *testing.T) {
	ctl, url := newTestServer(t)
	streamerToken, streamerID := account(t, ctl, "alice")
	viewerToken, viewerID := account(t, ctl, "bobby")

	streamer := dial(t, url)
	streamer.handshake(streamerToken)
	code, body := streamer.call("CreateRoom", map[string]any{"title": "live", "max": 5, "isPublic": true, "mode": 1})
	require.Equal(t, core.OK, code)
	var created struct {
		RoomInfo   domain.RoomInfo   `json:"roomInfo"`
		ICEServers []json.RawMessage `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.RoomInfo.InviteCode)
	assert.Equal(t, domain.StreamMode(1), created.RoomInfo.Mode)
	assert.NotEmpty(t, created.ICEServers)
	code, _ = streamer.call("SwitchStream", map[string]any{"flag": true})
	require.Equal(t, core.OK, code)

	viewer := dial(t, url)
	viewer.handshake(viewerToken)
	code, body = viewer.call("JoinRoom", map[string]any{"query": string(created.RoomInfo.InviteCode)})
	require.Equal(t, core.OK, code)
	var join orch.JoinResult
	require.NoError(t, json.Unmarshal(body, &join))
	assert.Equal(t, domain.RoomOf(streamerID), join.ID)

	code, _ = viewer.call("RoomEntered", map[string]any{"id": join.ID})
	require.Equal(t, core.OK, code)
	streamer.expect("OnEnter")

	code, _ = viewer.call("SendDanmaku", map[string]any{"content": "hello", "color": "#fff", "position": 1})
	require.Equal(t, core.OK, code)
	env := streamer.expect("OnDanmaku")
	var d domain.Danmaku
	require.NoError(t, json.Unmarshal(env.Data.Msg, &d))
	assert.Equal(t, "hello", d.Content)
	assert.Equal(t, viewerID, d.SenderID)

	viewer.send("Offer", map[string]any{"offer": map[string]string{"sdp": "v=0"}})
	env = streamer.expect("Offer")
	var r orch.Relayed
	require.NoError(t, json.Unmarshal(env.Data.Msg, &r))
	assert.Equal(t, viewerID, r.From)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(r.Data))

	streamer.send("Answer", map[string]any{"answer": "x", "to": viewerID})
	res, _ := streamer.expect("Answer").Result()
	assert.Equal(t, core.InvalidStatus, res.Code)

	require.NoError(t, viewer.conn.Close())
	streamer.expect("OnLeave")
	assert.Eventually(t, func() bool { return ctl.Orch.OnlineCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestGatingAndMalformedInput(t *testing.T) {
	ctl, url := newTestServer(t)
	token, _ := account(t, ctl, "alice")

	anon := dial(t, url)
	code, _ := anon.call("CreateRoom", map[string]any{"title": "x", "max": 5})
	assert.Equal(t, core.InvalidUser, code)
	code, _ = anon.call("GetRoom_Admin", nil)
	assert.Equal(t, core.InvalidUser, code)

	code, body := anon.call("HeartBeat", map[string]any{"n": 1})
	assert.Equal(t, core.OK, code)
	assert.JSONEq(t, `{"n":1}`, string(body))

	require.NoError(t, anon.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	res, _ := anon.expect("Error").Result()
	assert.Equal(t, core.ParamsFormatError, res.Code)
	anon.send("NoSuchThing", nil)
	res, _ = anon.expect("Error").Result()
	assert.Equal(t, core.ParamsFormatError, res.Code)

	anon.handshake(token)
	code, _ = anon.call("CreateRoom", map[string]any{"title": "x", "max": 99})
	assert.Equal(t, core.ParamsFormatError, code)
	code, _ = anon.call("RoomEntered", map[string]any{"id": "not-a-number"})
	assert.Equal(t, core.ParamsFormatError, code)

	admin := dial(t, url)
	admin.send("GetInfo", map[string]any{"type": "admin"})
	admin.expect("GetInfoResult")
	code, _ = admin.call("GetRoom_Admin", nil)
	assert.Equal(t, core.NoAuth, code)
	code, _ = admin.call("Login", map[string]any{"password": "root"})
	require.Equal(t, core.OK, code)
	code, _ = admin.call("GetRoom_Admin", nil)
	assert.Equal(t, core.OK, code)
	code, body = admin.call("ToggleSilent_Admin", map[string]any{"uid": []int{1, 404}, "action": false})
	assert.Equal(t, core.PartError, code)
	assert.JSONEq(t, `{"count":1}`, string(body))
}

func TestHandlerPanicIsContained(t *testing.T) {
	ctl, url := newTestServer(t)
	ctl.routes["Boom"] = route{tier: TierNon, handle: func(context.Context, *core.Session, json.RawMessage) (any, error) {
		panic("boom")
	}}
	c := dial(t, url)
	code, _ := c.call("Boom", nil)
	assert.Equal(t, core.UnknownError, code)
	code, _ = c.call("HeartBeat", nil)
	assert.Equal(t, core.OK, code, "connection survives")
}

func TestLogoutClosesConnection(t *testing.T) {
	ctl, url := newTestServer(t)
	token, _ := account(t, ctl, "alice")
	c := dial(t, url)
	c.handshake(token)
	require.Equal(t, 1, ctl.Orch.OnlineCount())

	c.send("logout", nil)
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return ctl.Orch.OnlineCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWsSignalConnSend(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), core.ErrBackpressure)
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), core.ErrClosed)
}

func TestQueryString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: float64(12), want: "12"},
		{in: "AB12CD", want: "AB12CD"},
		{in: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, queryString(tt.in))
		})
	}
}
