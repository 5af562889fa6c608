package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/metrics"
	"github.com/muurk/greeac/internal/protocol"
)

type fakeController struct {
	mu       sync.Mutex
	state    climate.State
	requests []protocol.Request
	err      error
	age      time.Duration
	hasAge   bool
	subs     []chan climate.State
}

func (f *fakeController) State() climate.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Control(req protocol.Request) (climate.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return climate.State{}, f.err
	}
	f.requests = append(f.requests, req)
	st := f.state
	if req.Mode != nil {
		st.Mode = *req.Mode
	}
	if req.TargetTemperature != nil {
		st.TargetTemperature = *req.TargetTemperature
	}
	return st, nil
}

func (f *fakeController) Traits() climate.Traits { return climate.DefaultTraits() }

func (f *fakeController) Subscribe() (<-chan climate.State, func()) {
	ch := make(chan climate.State, 4)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, c := range f.subs {
				if c == ch {
					f.subs = append(f.subs[:i], f.subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
}

func (f *fakeController) publish(st climate.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
	for _, ch := range f.subs {
		ch <- st
	}
}

func (f *fakeController) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeController) LastFrameAge() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.age, f.hasAge
}

func newTestServer(t *testing.T) (*Server, *fakeController) {
	t.Helper()
	ctrl := &fakeController{state: climate.State{
		Mode:               protocol.ModeCool,
		FanSpeed:           protocol.FanSpeedAuto,
		TargetTemperature:  24,
		CurrentTemperature: 27,
	}}
	reg := metrics.NewRegistry()
	srv, err := New(Config{
		Listen:   "127.0.0.1:0",
		Registry: reg,
		Metrics:  metrics.NewAppMetrics(reg),
	}, ctrl)
	require.NoError(t, err)
	return srv, ctrl
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, ctrl := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Nil(t, body["last_frame_age_seconds"])

	ctrl.age, ctrl.hasAge = 1500*time.Millisecond, true
	rec = do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1.5, body["last_frame_age_seconds"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "greeac_websocket_clients")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	srv, err := New(Config{Listen: "127.0.0.1:0"}, &fakeController{})
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetState(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st climate.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, protocol.ModeCool, st.Mode)
	assert.Equal(t, 27, st.CurrentTemperature)
}

func TestGetTraits(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/traits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fan_only"`)
	assert.Contains(t, rec.Body.String(), `"min_temperature":16`)
}

func TestPostControl(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		ctrlErr    error
		wantStatus int
		wantCalls  int
	}{
		{"full request", `{"mode":"heat","fan_speed":"low","target_temperature":21,"swing_mode":"off"}`, nil, http.StatusOK, 1},
		{"partial request", `{"target_temperature":19}`, nil, http.StatusOK, 1},
		{"empty request resends", `{}`, nil, http.StatusOK, 1},
		{"bad mode", `{"mode":"turbo"}`, nil, http.StatusBadRequest, 0},
		{"bad fan", `{"fan_speed":"hurricane"}`, nil, http.StatusBadRequest, 0},
		{"bad json", `{"mode":`, nil, http.StatusBadRequest, 0},
		{"temperature too low", `{"target_temperature":15}`, nil, http.StatusBadRequest, 0},
		{"temperature too high", `{"target_temperature":31}`, nil, http.StatusBadRequest, 0},
		{"transport failure", `{"mode":"cool"}`, errors.New("port gone"), http.StatusBadGateway, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ctrl := newTestServer(t)
			ctrl.err = tt.ctrlErr

			rec := do(t, srv.Handler(), http.MethodPost, "/api/control", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Len(t, ctrl.requests, tt.wantCalls)

			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestPostControl_ReturnsRequestedState(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/control", `{"mode":"heat","target_temperature":21}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var st climate.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, protocol.ModeHeat, st.Mode)
	assert.Equal(t, 21, st.TargetTemperature)
}

func TestPostControl_RateLimited(t *testing.T) {
	ctrl := &fakeController{}
	srv, err := New(Config{Listen: "127.0.0.1:0", ControlRate: 0.001, ControlBurst: 2}, ctrl)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec := do(t, srv.Handler(), http.MethodPost, "/api/control", `{"mode":"cool"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, srv.Handler(), http.MethodPost, "/api/control", `{"mode":"cool"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, ctrl.requests, 2)

	// Invalid requests are rejected before they spend a token
	rec = do(t, srv.Handler(), http.MethodPost, "/api/control", `{"target_temperature":40}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_InitialAndPushedState(t *testing.T) {
	srv, ctrl := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()

	msg := readMessage(t, conn)
	require.Equal(t, MessageTraits, msg.Type)
	require.NotNil(t, msg.Traits)
	assert.Equal(t, 30, msg.Traits.MaxTemperature)

	msg = readMessage(t, conn)
	require.Equal(t, MessageState, msg.Type)
	assert.Equal(t, protocol.ModeCool, msg.State.Mode)

	require.Eventually(t, func() bool { return ctrl.subscribers() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, srv.ActiveClients())

	ctrl.publish(climate.State{Mode: protocol.ModeDry, FanSpeed: protocol.FanSpeedLow, TargetTemperature: 25})
	msg = readMessage(t, conn)
	require.Equal(t, MessageState, msg.Type)
	assert.Equal(t, protocol.ModeDry, msg.State.Mode)
}

func TestWebSocket_Control(t *testing.T) {
	srv, ctrl := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()
	readMessage(t, conn) // traits
	readMessage(t, conn) // state

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"control","request":{"mode":"heat","target_temperature":26}}`)))
	msg := readMessage(t, conn)
	require.Equal(t, MessageState, msg.Type, msg.Error)
	assert.Equal(t, protocol.ModeHeat, msg.State.Mode)
	assert.Equal(t, 26, msg.State.TargetTemperature)

	ctrl.mu.Lock()
	assert.Len(t, ctrl.requests, 1)
	ctrl.mu.Unlock()

	errorCases := []string{
		`{"type":"control","request":{"mode":"turbo"}}`,
		`{"type":"control"}`,
		`{"type":"dance"}`,
		`not json`,
		`{"type":"control","request":{"target_temperature":40}}`,
	}
	for _, body := range errorCases {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(body)))
		msg := readMessage(t, conn)
		assert.Equal(t, MessageError, msg.Type, body)
		assert.NotEmpty(t, msg.Error, body)
	}
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	srv, ctrl := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return ctrl.subscribers() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return ctrl.subscribers() == 0 && srv.ActiveClients() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServe_Shutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, srv.ActiveClients())
}

func selfSignedPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "greeac.local"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"greeac.local"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	var cb, kb bytes.Buffer
	require.NoError(t, pem.Encode(&cb, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, pem.Encode(&kb, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return cb.Bytes(), kb.Bytes()
}

func TestTLSConfig(t *testing.T) {
	certPEM, keyPEM := selfSignedPEM(t)

	cfg, err := NewTLSConfigFromMemory(certPEM, keyPEM)
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Len(t, cfg.Certificates, 1)

	info := GetTLSInfo(cfg)
	assert.Equal(t, "TLS 1.2", info["min_version"])

	_, err = NewTLSConfigFromMemory([]byte("nope"), keyPEM)
	assert.Error(t, err)

	_, err = NewTLSConfig("", "")
	assert.Error(t, err)
}

func TestNew_BadCertFiles(t *testing.T) {
	_, err := New(Config{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}, &fakeController{})
	assert.Error(t, err)
}

func TestValidateRequest(t *testing.T) {
	ok, low := 20, 10
	assert.NoError(t, validateRequest(protocol.Request{TargetTemperature: &ok}, 16, 30))
	assert.ErrorIs(t, validateRequest(protocol.Request{TargetTemperature: &low}, 16, 30), errInvalidRequest)
	assert.NoError(t, validateRequest(protocol.Request{}, 16, 30))
}
