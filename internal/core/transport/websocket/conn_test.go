package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// echoRelay 回显文本帧的测试中继
func echoRelay(t *testing.T) (types.RelayURL, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			typ, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(typ, data); err != nil {
				return
			}
		}
	}))
	u := types.MustParseRelayURL("ws://" + strings.TrimPrefix(srv.URL, "http://"))
	return u, srv.Close
}

func TestConn_SendReceive(t *testing.T) {
	url, stop := echoRelay(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := NewDialer(Options{}).Dial(ctx, url)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send(ctx, []byte(`["EOSE","sub"]`)))
	got, err := tr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `["EOSE","sub"]`, string(got))
}

func TestConn_Ping(t *testing.T) {
	url, stop := echoRelay(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := NewDialer(Options{}).Dial(ctx, url)
	require.NoError(t, err)
	defer tr.Close()

	assert.NoError(t, tr.Ping(ctx))
}

func TestConn_ReceiveHonoursContext(t *testing.T) {
	url, stop := echoRelay(t)
	defer stop()

	tr, err := NewDialer(Options{}).Dial(context.Background(), url)
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_Closed(t *testing.T) {
	url, stop := echoRelay(t)
	defer stop()

	ctx := context.Background()
	tr, err := NewDialer(Options{}).Dial(ctx, url)
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send(ctx, []byte("x")), ErrTransportClosed)
}

func TestConn_ServerGoneSurfacesError(t *testing.T) {
	url, stop := echoRelay(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := NewDialer(Options{}).Dial(ctx, url)
	require.NoError(t, err)
	defer tr.Close()

	stop()
	_, err = tr.Receive(ctx)
	assert.Error(t, err)
}

func TestDialer_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewDialer(Options{}).Dial(ctx, types.MustParseRelayURL("ws://127.0.0.1:1"))
	assert.Error(t, err)
}
