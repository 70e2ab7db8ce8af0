package signal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvey0995/GhostBridge/internal/app"
	"github.com/harvey0995/GhostBridge/internal/config"
	"github.com/harvey0995/GhostBridge/internal/core"
	"github.com/harvey0995/GhostBridge/internal/domain"
)

type mockConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(core.Frame, len(f))
	copy(cp, f)
	m.frames = append(m.frames, cp)
	return nil
}

func (m *mockConn) Pending() int { return 0 }

func (m *mockConn) Close() {}

func (m *mockConn) eventsOfType(t *testing.T, eventType string) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	for _, frame := range m.frames {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(frame, &ev))
		if ev["type"] == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:           "release",
		Port:           3000,
		ReadLimit:      1 << 20,
		PingPeriod:     time.Second,
		ShutdownGrace:  time.Second,
		SendBuffer:     8,
		AllowedOrigins: []string{"*"},
		JoinBurst:      3,
		JoinWindow:     time.Second,
	}
}

func newTestController() *Controller {
	engine := app.NewEngine(app.NewRegistry(), app.SimplePolicy{})
	return NewController(engine, testConfig())
}

func connect(ctl *Controller, sid core.SessionID) *mockConn {
	conn := &mockConn{}
	ctl.Engine.Connect(sid, conn, nil)
	return conn
}

func TestHandle_MalformedJSONIgnored(t *testing.T) {
	ctl := newTestController()
	connect(ctl, "x")

	assert.NotPanics(t, func() {
		ctl.Handle("x", []byte(`{not json`))
		ctl.Handle("x", []byte(``))
		ctl.Handle("x", []byte(`42`))
	})
	assert.Equal(t, 1, ctl.Engine.Registry.Count(), "connection survives malformed events")
}

func TestHandle_UnknownEventIgnored(t *testing.T) {
	ctl := newTestController()
	x := connect(ctl, "x")

	ctl.Handle("x", []byte(`{"type":"mystery-event","data":"?"}`))

	x.mu.Lock()
	defer x.mu.Unlock()
	assert.Empty(t, x.frames)
}

func TestHandle_RegisterDevice(t *testing.T) {
	ctl := newTestController()
	x := connect(ctl, "x")

	ctl.Handle("x", []byte(`{"type":"register-device","device":{"type":"phone","name":"MyPhone"}}`))

	dev, ok := ctl.Engine.Registry.Device("x")
	require.True(t, ok)
	assert.Equal(t, "phone", dev.DeviceType)
	assert.Equal(t, "MyPhone", dev.DeviceName)

	updates := x.eventsOfType(t, app.EvDevicesUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, float64(1), updates[0]["totalCount"])
}

func TestHandle_JoinRoom(t *testing.T) {
	ctl := newTestController()
	connect(ctl, "x")

	ctl.Handle("x", []byte(`{"type":"join-room","room":"SHOP_1234"}`))

	room, ok := ctl.Engine.Registry.RoomOf("x")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("SHOP_1234"), room)
}

func TestHandle_JoinRoomRateLimited(t *testing.T) {
	ctl := newTestController()
	connect(ctl, "x")

	ctl.Handle("x", []byte(`{"type":"join-room","room":"R1"}`))
	ctl.Handle("x", []byte(`{"type":"join-room","room":"R2"}`))
	ctl.Handle("x", []byte(`{"type":"join-room","room":"R3"}`))
	ctl.Handle("x", []byte(`{"type":"join-room","room":"R4"}`))

	room, ok := ctl.Engine.Registry.RoomOf("x")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("R3"), room, "fourth join inside the window is dropped")
}

func TestHandle_SendFileEndToEnd(t *testing.T) {
	ctl := newTestController()
	customer := connect(ctl, "customer")
	station := connect(ctl, "station")

	ctl.Handle("station", []byte(`{"type":"join-room","room":"SHOP_1234"}`))
	ctl.Handle("customer", []byte(`{"type":"send-file","room":"SHOP_1234","file":{"name":"a.png","type":"image/png","content":"data:image/png;base64,iVBORw0KGgo=","size":1}}`))

	received := station.eventsOfType(t, app.EvReceiveFile)
	require.Len(t, received, 1)
	file, ok := received[0]["file"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.png", file["name"])
	assert.Equal(t, float64(1), file["size"], "declared size echoed verbatim")

	confirms := customer.eventsOfType(t, app.EvClickConfirmed)
	require.Len(t, confirms, 1)
	assert.Equal(t, "sent", confirms[0]["status"])
	assert.Equal(t, "a.png", confirms[0]["fileName"])
}

func TestHandle_SendFileEmptyContentNoConfirmation(t *testing.T) {
	ctl := newTestController()
	x := connect(ctl, "x")

	ctl.Handle("x", []byte(`{"type":"send-file","room":"R1","file":{"name":"a.png","content":""}}`))

	assert.Empty(t, x.eventsOfType(t, app.EvClickConfirmed))
}

func TestHandle_ButtonClicked(t *testing.T) {
	ctl := newTestController()
	phone := connect(ctl, "phone")
	laptop := connect(ctl, "laptop")

	ctl.Handle("phone", []byte(`{"type":"button-clicked","message":"Click from Phone!","timestamp":"10:00:00"}`))

	clicks := laptop.eventsOfType(t, app.EvClickReceived)
	require.Len(t, clicks, 1)
	assert.Equal(t, "Click from Phone!", clicks[0]["message"])

	confirms := phone.eventsOfType(t, app.EvClickConfirmed)
	require.Len(t, confirms, 1)
	assert.Equal(t, float64(1), confirms[0]["recipientCount"])
}

func TestJoinRateLimiter_Window(t *testing.T) {
	rl := NewJoinRateLimiter(2, 50*time.Millisecond)

	assert.True(t, rl.Allow("x"))
	assert.True(t, rl.Allow("x"))
	assert.False(t, rl.Allow("x"))
	assert.True(t, rl.Allow("y"), "limits are per session")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("x"), "window slides")

	rl.Forget("y")
	assert.True(t, rl.Allow("y"))
}

func TestNewSessionID_UniquePerConnection(t *testing.T) {
	// Two tabs in one browser present the same client token; each connection
	// must still get its own id or the second registers over the first.
	a := newSessionID("11111111-2222-3333-4444-555555555555")
	b := newSessionID("11111111-2222-3333-4444-555555555555")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(string(a), "11111111:"), "token kept only as a log prefix")
	assert.True(t, strings.HasPrefix(string(b), "11111111:"))

	c := newSessionID("")
	d := newSessionID("")
	assert.NotEqual(t, c, d)
	assert.NotContains(t, string(c), ":")
}

func TestWsSignalConn_PendingTracksBufferedFrames(t *testing.T) {
	conn := &WsSignalConn{send: make(chan core.Frame, 2)}
	assert.Equal(t, 0, conn.Pending())

	require.NoError(t, conn.TrySend(core.Frame(`{"type":"a"}`)))
	require.NoError(t, conn.TrySend(core.Frame(`{"type":"b"}`)))
	assert.Equal(t, 2, conn.Pending())
	assert.ErrorIs(t, conn.TrySend(core.Frame(`{"type":"c"}`)), ErrBackpressure)

	<-conn.send
	assert.Equal(t, 1, conn.Pending())
}

func newRequestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://example.com"})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"allowed origin", "http://example.com", true},
		{"other origin", "http://evil.com", false},
		{"no origin header", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRequestWithOrigin(tt.origin)
			assert.Equal(t, tt.want, check(r))
		})
	}

	wildcard := originChecker([]string{"*"})
	assert.True(t, wildcard(newRequestWithOrigin("http://anything.test")))
}
