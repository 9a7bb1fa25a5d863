package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"match-replay/internal/api"
	"match-replay/internal/camera"
	"match-replay/internal/imagecache"
	"match-replay/internal/render"
	"match-replay/internal/scene"
	"match-replay/internal/viewer"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockViewer implements api.ViewerInterface for testing
type mockViewer struct {
	mu       sync.Mutex
	state    viewer.State
	mode     camera.Mode
	preset   string
	zoom     float64
	keys     []string
	pointerY float64
	hover    bool
	subs     []func(viewer.State)
}

func newMockViewer(total int) *mockViewer {
	return &mockViewer{state: viewer.State{SessionID: "test", Total: total, Ready: true, CameraMode: "free"}}
}

func (m *mockViewer) Snapshot() viewer.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockViewer) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Ready {
		return scene.ErrAssetsNotReady
	}
	m.state.Playing = true
	return nil
}

func (m *mockViewer) Pause() {
	m.mu.Lock()
	m.state.Playing = false
	m.mu.Unlock()
}

func (m *mockViewer) TogglePlay() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Ready {
		return false, scene.ErrAssetsNotReady
	}
	m.state.Playing = !m.state.Playing
	return m.state.Playing, nil
}

func (m *mockViewer) Seek(frame int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if frame < 0 || frame >= m.state.Total {
		return false
	}
	m.state.Frame = frame
	return true
}

func (m *mockViewer) SetCameraPreset(name string) error {
	if _, ok := camera.Presets[name]; !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	m.mu.Lock()
	m.preset = name
	m.mu.Unlock()
	return nil
}

func (m *mockViewer) ToggleBallFollow() camera.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == camera.ModeFree {
		m.mode = camera.ModeBallFollow
	} else {
		m.mode = camera.ModeFree
	}
	m.state.CameraMode = m.mode.String()
	return m.mode
}

func (m *mockViewer) Orbit(left, up float64) {}

func (m *mockViewer) Zoom(factor float64) {
	m.mu.Lock()
	m.zoom = factor
	m.mu.Unlock()
}

func (m *mockViewer) Pan(dx, dy float64) {}

func (m *mockViewer) HandleKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return key == "space" || key == "b"
}

func (m *mockViewer) Pointer(y, height float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointerY = y
	m.state.ControlsVisible = y > height-50
}

func (m *mockViewer) HoverControls(over bool) {
	m.mu.Lock()
	m.hover = over
	m.mu.Unlock()
}

func (m *mockViewer) Subscribe(fn func(viewer.State)) func() {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
	return func() {}
}

func (m *mockViewer) recorded() (preset string, zoom, pointerY float64, hover bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preset, m.zoom, m.pointerY, m.hover
}

// mockFrames implements api.FrameSource
type mockFrames struct {
	frame *render.Frame
}

func (m *mockFrames) Latest() *render.Frame { return m.frame }

func solidFrame(seq uint64) *render.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{46, 125, 50, 255})
		}
	}
	return &render.Frame{Image: img, Seq: seq, RenderedAt: time.Now()}
}

var testRateLimit = &api.RateLimitConfig{
	RequestsPerSecond: 1000,
	Burst:             1000,
	CleanupInterval:   time.Hour,
}

func newTestServer(t *testing.T, v api.ViewerInterface, frames api.FrameSource) *httptest.Server {
	t.Helper()
	rl := api.NewIPRateLimiter(*testRateLimit)
	t.Cleanup(rl.Stop)
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Viewer:         v,
		Frames:         frames,
		RateLimiter:    rl,
		DisableLogging: true,
	}))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// ============================================================================
// Router Tests
// ============================================================================

func TestGetState(t *testing.T) {
	v := newMockViewer(120)
	ts := newTestServer(t, v, nil)

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st viewer.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 120, st.Total)
	assert.Equal(t, "test", st.SessionID)
	assert.True(t, st.Ready)
}

func TestRootRedirectsToState(t *testing.T) {
	ts := newTestServer(t, newMockViewer(1), nil)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/api/state", resp.Header.Get("Location"))
}

func TestPlaybackControls(t *testing.T) {
	v := newMockViewer(10)
	ts := newTestServer(t, v, nil)

	resp, body := postJSON(t, ts.URL+"/api/playback/toggle", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["playing"])

	resp, _ = postJSON(t, ts.URL+"/api/playback/pause", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, v.Snapshot().Playing)

	resp, body = postJSON(t, ts.URL+"/api/playback/play", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["playing"])
}

func TestPlaybackRefusedBeforeAssets(t *testing.T) {
	v := newMockViewer(10)
	v.state.Ready = false
	ts := newTestServer(t, v, nil)

	for _, path := range []string{"/api/playback/toggle", "/api/playback/play"} {
		resp, body := postJSON(t, ts.URL+path, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
		assert.Contains(t, body["error"], "assets not ready")
	}
	assert.False(t, v.Snapshot().Playing)
}

func TestSeek(t *testing.T) {
	v := newMockViewer(10)
	ts := newTestServer(t, v, nil)

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantSuccess interface{}
		wantFrame   int
	}{
		{"in range", `{"frame": 7}`, http.StatusOK, true, 7},
		{"past end is a no-op", `{"frame": 10}`, http.StatusOK, false, 7},
		{"negative is a no-op", `{"frame": -1}`, http.StatusOK, false, 7},
		{"missing frame", `{}`, http.StatusBadRequest, nil, 7},
		{"invalid json", `{frame}`, http.StatusBadRequest, nil, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/api/playback/seek", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantSuccess != nil {
				assert.Equal(t, tt.wantSuccess, body["success"])
			}
			assert.Equal(t, tt.wantFrame, v.Snapshot().Frame)
		})
	}
}

func TestCameraRoutes(t *testing.T) {
	v := newMockViewer(10)
	ts := newTestServer(t, v, nil)

	resp, err := http.Get(ts.URL + "/api/camera/presets")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	resp.Body.Close()
	assert.Equal(t, []string{"left", "overhead", "right"}, names)

	r, _ := postJSON(t, ts.URL+"/api/camera/preset", `{"name":"left"}`)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	preset, _, _, _ := v.recorded()
	assert.Equal(t, "left", preset)

	r, _ = postJSON(t, ts.URL+"/api/camera/preset", `{"name":"corner"}`)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	r, body := postJSON(t, ts.URL+"/api/camera/follow", "")
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "ball", body["mode"])

	r, _ = postJSON(t, ts.URL+"/api/camera/zoom", `{"scale":0}`)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	r, _ = postJSON(t, ts.URL+"/api/camera/zoom", `{"scale":1.25}`)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	_, zoom, _, _ := v.recorded()
	assert.Equal(t, 1.25, zoom)

	r, _ = postJSON(t, ts.URL+"/api/camera/orbit", `{"dTheta":0.1,"dPhi":0.2}`)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	r, _ = postJSON(t, ts.URL+"/api/camera/pan", `{"dx":1,"dy":2}`)
	assert.Equal(t, http.StatusOK, r.StatusCode)
}

func TestInputRoutes(t *testing.T) {
	v := newMockViewer(10)
	ts := newTestServer(t, v, nil)

	r, body := postJSON(t, ts.URL+"/api/input/key", `{"key":"b"}`)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, true, body["handled"])

	r, body = postJSON(t, ts.URL+"/api/input/key", `{"key":"q"}`)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, false, body["handled"])

	r, _ = postJSON(t, ts.URL+"/api/input/key", `{"key":""}`)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	r, body = postJSON(t, ts.URL+"/api/input/pointer", `{"y":700,"height":720,"overControls":true}`)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, true, body["controlsVisible"])
	_, _, pointerY, hover := v.recorded()
	assert.True(t, hover)
	assert.Equal(t, 700.0, pointerY)
}

func TestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, newMockViewer(10), nil)
	big := `{"key":"` + strings.Repeat("x", 8<<10) + `"}`
	r, _ := postJSON(t, ts.URL+"/api/input/key", big)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

// ============================================================================
// Frame Tests
// ============================================================================

func TestFrameUnavailable(t *testing.T) {
	v := newMockViewer(10)

	t.Run("rendering disabled", func(t *testing.T) {
		ts := newTestServer(t, v, nil)
		resp, err := http.Get(ts.URL + "/api/frame.png")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("no frame yet", func(t *testing.T) {
		ts := newTestServer(t, v, &mockFrames{})
		resp, err := http.Get(ts.URL + "/api/frame.jpg")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	})
}

func TestFramePNG(t *testing.T) {
	ts := newTestServer(t, newMockViewer(10), &mockFrames{frame: solidFrame(42)})

	resp, err := http.Get(ts.URL + "/api/frame.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "42", resp.Header.Get("X-Frame-Seq"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	r, g, b, _ := img.At(3, 3).RGBA()
	assert.Equal(t, []uint32{46, 125, 50}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestFrameJPEG(t *testing.T) {
	ts := newTestServer(t, newMockViewer(10), &mockFrames{frame: solidFrame(7)})

	resp, err := http.Get(ts.URL + "/api/frame.jpg?q=50")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	img, err := jpeg.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestFrameScaledAndCached(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	cache := imagecache.New(4)
	rl := api.NewIPRateLimiter(*testRateLimit)
	defer rl.Stop()
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Viewer:         newMockViewer(1),
		Frames:         &mockFrames{frame: &render.Frame{Image: img, Seq: 3}},
		Images:         cache,
		RateLimiter:    rl,
		DisableLogging: true,
	}))
	defer ts.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/api/frame.png?w=32")
		require.NoError(t, err)
		decoded, err := png.Decode(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 32, 18), decoded.Bounds())
	}

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

// seqFrames hands out a new sequence number on every call
type seqFrames struct {
	mu  sync.Mutex
	seq uint64
	img *image.RGBA
}

func (s *seqFrames) Latest() *render.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return &render.Frame{Image: s.img, Seq: s.seq}
}

func TestMJPEGStream(t *testing.T) {
	frames := &seqFrames{img: solidFrame(0).Image}
	ts := newTestServer(t, newMockViewer(1), frames)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream.mjpeg?fps=30", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)

	mr := multipart.NewReader(resp.Body, params["boundary"])
	for i := 0; i < 2; i++ {
		part, err := mr.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
		img, err := jpeg.Decode(part)
		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
	}
}

func TestMJPEGWithoutRenderer(t *testing.T) {
	ts := newTestServer(t, newMockViewer(1), nil)
	resp, err := http.Get(ts.URL + "/api/stream.mjpeg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// ============================================================================
// Rate Limiting Tests
// ============================================================================

func TestRateLimitRejects(t *testing.T) {
	rl := api.NewIPRateLimiter(api.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Viewer:         newMockViewer(1),
		RateLimiter:    rl,
		DisableLogging: true,
	}))
	defer ts.Close()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/state")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, uint64(1), rl.GetStats()["rejected"])
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:5555"
	assert.Equal(t, "10.0.0.5", api.GetClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.6")
	assert.Equal(t, "10.0.0.6", api.GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", api.GetClientIP(r))
}

func TestWebSocketRateLimiter(t *testing.T) {
	wrl := api.NewWebSocketRateLimiter(2)
	assert.True(t, wrl.Allow("a"))
	assert.True(t, wrl.Allow("a"))
	assert.False(t, wrl.Allow("a"))
	assert.True(t, wrl.Allow("b"))

	wrl.Release("a")
	assert.Equal(t, 1, wrl.GetConnectionCount("a"))
	assert.True(t, wrl.Allow("a"))
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"https://replay.example.org"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://replay.example.org", true},
		{"https://REPLAY.example.org", true},
		{"https://evil.example.org", false},
		{"https://replay.example.org.evil.com", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, api.IsAllowedOrigin(tt.origin, allowed), tt.origin)
	}
}

// ============================================================================
// Command Tests
// ============================================================================

func TestApplyCommand(t *testing.T) {
	v := newMockViewer(10)
	frame := 4
	over := true

	assert.True(t, api.ApplyCommand(v, api.Command{Action: "toggle"}).OK)
	assert.True(t, v.Snapshot().Playing)
	assert.True(t, api.ApplyCommand(v, api.Command{Action: "pause"}).OK)
	assert.False(t, v.Snapshot().Playing)

	assert.True(t, api.ApplyCommand(v, api.Command{Action: "seek", Frame: &frame}).OK)
	assert.Equal(t, 4, v.Snapshot().Frame)
	assert.False(t, api.ApplyCommand(v, api.Command{Action: "seek"}).OK)

	res := api.ApplyCommand(v, api.Command{Action: "preset", Name: "nowhere"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "nowhere")

	assert.False(t, api.ApplyCommand(v, api.Command{Action: "zoom", Scale: -1}).OK)
	assert.True(t, api.ApplyCommand(v, api.Command{Action: "key", Key: "space"}).OK)
	assert.True(t, api.ApplyCommand(v, api.Command{Action: "pointer", Y: 10, Height: 720, Over: &over}).OK)
	_, _, _, hover := v.recorded()
	assert.True(t, hover)

	res = api.ApplyCommand(v, api.Command{Action: "dance"})
	assert.False(t, res.OK)
	assert.Equal(t, "dance", res.Action)
}

// ============================================================================
// WebSocket Tests
// ============================================================================

type wsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Event == want {
			return ev
		}
	}
}

func TestWebSocketWelcomeAndCommand(t *testing.T) {
	v := newMockViewer(10)
	srv := api.NewServer(v, nil, api.ServerOptions{RateLimit: testRateLimit})
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	welcome := readEvent(t, conn, api.EventWelcome)
	var hello struct {
		ClientID string       `json:"clientId"`
		State    viewer.State `json:"state"`
	}
	require.NoError(t, json.Unmarshal(welcome.Data, &hello))
	assert.NotEmpty(t, hello.ClientID)
	assert.Equal(t, 10, hello.State.Total)

	require.NoError(t, conn.WriteJSON(api.Command{Action: "toggle"}))
	var res api.CommandResult
	require.NoError(t, json.Unmarshal(readEvent(t, conn, api.EventCommandResult).Data, &res))
	assert.True(t, res.OK)
	assert.True(t, v.Snapshot().Playing)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{bad")))
	require.NoError(t, json.Unmarshal(readEvent(t, conn, api.EventCommandResult).Data, &res))
	assert.False(t, res.OK)

	assert.Eventually(t, func() bool { return srv.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketBroadcastsState(t *testing.T) {
	v := newMockViewer(10)
	hub := api.NewWebSocketHub(v, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	hub.StartBroadcastLoop(ctx)

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn, api.EventPlaybackState)
	var st viewer.State
	require.NoError(t, json.Unmarshal(ev.Data, &st))
	assert.Equal(t, 10, st.Total)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	hub := api.NewWebSocketHub(newMockViewer(1), []string{"https://replay.example.org"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example.org"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDebugHandler(t *testing.T) {
	h := api.DebugHandler(api.ObservabilityConfig{BasicAuthUser: "ops", BasicAuthPass: "pw"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	api.UpdatePlaybackMetrics(viewer.State{Frame: 5, Total: 9, Playing: true})
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("replay_current_frame 5")))
}
