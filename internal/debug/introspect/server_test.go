package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/internal/core/postbox"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var (
	relayA = types.MustParseRelayURL("wss://a.relay.test")
	relayB = types.MustParseRelayURL("wss://b.relay.test")
)

type fakePool struct{}

func (fakePool) Statuses() []pool.RelayStatus {
	return []pool.RelayStatus{
		{Descriptor: types.NewRelayDescriptor(relayA), State: types.StateConnected},
		{
			Descriptor: types.RelayDescriptor{URL: relayB, Info: types.ReadOnly, Variant: types.VariantEphemeral},
			State:      types.StateFailed,
			Leases:     2,
			RetryCount: 3,
			LastError:  errors.New("dial refused"),
		},
	}
}
func (fakePool) NumConnected() int                      { return 1 }
func (fakePool) LastNetworkStatus() types.NetworkStatus { return types.NetworkSatisfied }
func (fakePool) HandlerCount() int                      { return 4 }

type fakePostBox struct{}

func (fakePostBox) Pending() []postbox.PendingPost {
	return []postbox.PendingPost{{
		ID:      types.NoteID{1},
		Targets: []types.RelayURL{relayA, relayB},
		AckedBy: []types.RelayURL{relayA},
		Retries: 2,
	}}
}

func get(t *testing.T, s *Server, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Result()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestNew(t *testing.T) {
	server := New(Config{})
	assert.Equal(t, DefaultAddr, server.config.Addr)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.config.Addr)
}

func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.Running())

	addr := server.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)

	// 重复启动无效
	require.NoError(t, server.Start(ctx))

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop())
	assert.False(t, server.Running())
	require.NoError(t, server.Stop())
}

func TestServer_Health(t *testing.T) {
	health := decode[HealthResponse](t, get(t, New(Config{}), "/health"))
	assert.Equal(t, "degraded", health.Status)

	health = decode[HealthResponse](t, get(t, New(Config{Pool: fakePool{}}), "/health"))
	assert.Equal(t, "ok", health.Status)
}

func TestServer_Introspect(t *testing.T) {
	s := New(Config{Pool: fakePool{}, PostBox: fakePostBox{}})
	resp := decode[IntrospectResponse](t, get(t, s, "/debug/introspect"))

	require.NotNil(t, resp.Pool)
	assert.Equal(t, "satisfied", resp.Pool.Network)
	assert.Equal(t, 1, resp.Pool.Connected)
	assert.Equal(t, 2, resp.Pool.Total)
	assert.Equal(t, 4, resp.Pool.Subscriptions)
	require.NotNil(t, resp.PostBox)
	assert.Equal(t, 1, resp.PostBox.Pending)
	require.NotNil(t, resp.Runtime)
	assert.NotEmpty(t, resp.Runtime.GoVersion)
}

func TestServer_Relays(t *testing.T) {
	s := New(Config{Pool: fakePool{}})
	relays := decode[[]RelayInfo](t, get(t, s, "/debug/introspect/relays"))

	require.Len(t, relays, 2)
	assert.Equal(t, relayA.String(), relays[0].URL)
	assert.Equal(t, "connected", relays[0].State)
	assert.True(t, relays[0].Write)

	assert.Equal(t, "ephemeral", relays[1].Variant)
	assert.False(t, relays[1].Write)
	assert.Equal(t, 2, relays[1].Leases)
	assert.Equal(t, "dial refused", relays[1].LastError)
}

func TestServer_PostBox(t *testing.T) {
	s := New(Config{PostBox: fakePostBox{}})
	info := decode[PostBoxInfo](t, get(t, s, "/debug/introspect/postbox"))

	require.Len(t, info.Posts, 1)
	assert.Equal(t, types.NoteID{1}.String(), info.Posts[0].ID)
	assert.Equal(t, []string{relayB.String()}, info.Posts[0].Remaining)
	assert.Equal(t, []string{relayA.String()}, info.Posts[0].Acked)
	assert.Equal(t, 2, info.Posts[0].Retries)
}

func TestServer_Unavailable(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/debug/introspect/relays").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/debug/introspect/postbox").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics").StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := New(Config{Pool: fakePool{}})
	for _, path := range []string{"/health", "/debug/introspect", "/debug/introspect/relays", "/debug/introspect/runtime"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "relaypool_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	resp := get(t, New(Config{Gatherer: reg}), "/metrics")
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "relaypool_test_total 1")
}

func TestServer_CustomHandler(t *testing.T) {
	s := New(Config{CustomHandlers: map[string]http.HandlerFunc{
		"/debug/custom": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) },
	}})
	assert.Equal(t, http.StatusTeapot, get(t, s, "/debug/custom").StatusCode)
}

func TestServer_UptimeBeforeStart(t *testing.T) {
	s := New(Config{})
	assert.Empty(t, s.uptime())
	s.since = time.Now().Add(-2 * time.Second)
	assert.NotEmpty(t, s.uptime())
}
