package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHub struct{}

func (echoHub) Serve(_ context.Context, conn *websocket.Conn) {
	defer conn.Close()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
}

func newRealtimeServer(origins []string) *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/realtime", NewRealtimeHandler(echoHub{}, origins, nil).Connect)
	return httptest.NewServer(router)
}

func TestRealtimeHandlerUpgrades(t *testing.T) {
	srv := newRealtimeServer([]string{"https://panel.example.com"})
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://panel.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/realtime", header)
	require.NoError(t, err)
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hello"}`, string(msg))
}

func TestRealtimeHandlerRejectsForeignOrigin(t *testing.T) {
	srv := newRealtimeServer([]string{"https://panel.example.com"})
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/realtime", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
