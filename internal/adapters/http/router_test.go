package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/config"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/dkeye/callstate/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type storeSource struct{ *app.Store }

func (s storeSource) State() *domain.State { return s.Current() }

func newRouter(t *testing.T) (*gin.Engine, *app.Store, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := app.NewStore(domain.CommunicationUser("me"), domain.DefaultCapacities())
	m := metrics.New()
	store.Subscribe(m.StateCommitted)
	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	return SetupRouter(ctx, cfg, storeSource{store}, m.Registry()), store, m
}

func addCamera(store *app.Store, id string) {
	store.Apply(func(d *app.Draft) {
		dm := d.DeviceManager()
		dm.Cameras = append(dm.Cameras, domain.VideoDeviceInfo{ID: id})
	})
}

func TestHealthz(t *testing.T) {
	r, store, _ := newRouter(t)
	addCamera(store, "cam-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status  string `json:"status"`
		Version uint64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, store.Current().Version, body.Version)
}

func TestStateEndpoint(t *testing.T) {
	r, store, _ := newRouter(t)
	addCamera(store, "cam-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body, "calls")
	require.Contains(t, body, "latestErrors")
	dm := body["deviceManager"].(map[string]any)
	cams := dm["cameras"].([]any)
	require.Len(t, cams, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	r, store, _ := newRouter(t)
	addCamera(store, "cam-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "callstate_state_version")
}

func TestViewerTokenIsKeptInSession(t *testing.T) {
	r, _, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "CallStateInspector", cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Empty(t, w.Result().Cookies())
}

func readVersion(t *testing.T, conn *websocket.Conn) uint64 {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var body struct {
		Version uint64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	return body.Version
}

func TestStateWebsocketPushesSnapshots(t *testing.T) {
	r, store, _ := newRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	first := readVersion(t, conn)
	require.Equal(t, store.Current().Version, first)
	require.Equal(t, 2, store.ObserverCount())

	addCamera(store, "cam-1")
	require.Equal(t, first+1, readVersion(t, conn))
	addCamera(store, "cam-2")
	require.Equal(t, first+2, readVersion(t, conn))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return store.ObserverCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}
