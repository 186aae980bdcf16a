package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"syncstream.pro/model"
	"syncstream.pro/room"
)

func TestJoinRedirect(t *testing.T) {
	api := newTestAPI(t, testConfig(t), nil)

	rec := serve(api, http.MethodGet, "/join/abcdefgh", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?join=ABCDEFGH", rec.Header().Get(echo.HeaderLocation))

	rec = serve(api, http.MethodGet, "/join/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomInfo(t *testing.T) {
	api := newTestAPI(t, testConfig(t), nil)

	rec := serve(api, http.MethodGet, "/api/room/ABCDEFGH/info", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	info, err := api.rooms.Create(room.CreateParams{Name: "Movie Night", Password: "pw", MaxUsers: 4})
	require.NoError(t, err)

	rec = serve(api, http.MethodGet, "/api/room/"+info.ID+"/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "$2a$")

	var got model.PublicInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, "Movie Night", got.Name)
	assert.True(t, got.HasPassword)
	assert.Equal(t, 4, got.MaxUsers)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, testConfig(t), nil)
	_, err := api.rooms.Create(room.CreateParams{Name: "Room"})
	require.NoError(t, err)

	rec := serve(api, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var h healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Rooms)
	assert.Equal(t, int64(0), h.Connections)
}

func TestNetworkInfo(t *testing.T) {
	api := newTestAPI(t, testConfig(t), nil)
	rec := serve(api, http.MethodGet, "/api/network-info", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res networkInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3000, res.Port)
	for _, a := range res.Addresses {
		assert.Contains(t, a.URL, a.Address)
	}
}

func TestPublicIP(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"203.0.113.7"}`))
	}))
	defer upstream.Close()

	c := testConfig(t)
	c.PublicIPURL = upstream.URL
	api := newTestAPI(t, c, nil)

	rec := serve(api, http.MethodGet, "/api/public-ip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ip":"203.0.113.7"}`, rec.Body.String())

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	c.PublicIPURL = broken.URL
	rec = serve(api, http.MethodGet, "/api/public-ip", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, testConfig(t), nil)
	rec := serve(api, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "syncstream_connections")
}

// hijackableRecorder lets ws.UpgradeHTTP take over a recorded request. The
// peer end is already closed, so the handshake reply is discarded.
type hijackableRecorder struct {
	*httptest.ResponseRecorder
}

func (r hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, peer := net.Pipe()
	_ = peer.Close()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}

// upgrade sends a plain GET to /ws from remoteAddr
func upgrade(api *API, remoteAddr string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header[k] = v
	}
	rec := hijackableRecorder{httptest.NewRecorder()}
	api.echo.ServeHTTP(rec, req)
	return rec.ResponseRecorder
}

func TestWebsocketRateLimit(t *testing.T) {
	c := testConfig(t)
	c.ConnectRateLimit = 2
	api := newTestAPI(t, c, nil)

	// failed handshakes still count as attempts
	for i := 0; i < 2; i++ {
		rec := upgrade(api, "198.51.100.7:40000", nil)
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
	rec := upgrade(api, "198.51.100.7:40000", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")

	rec = upgrade(api, "198.51.100.8:40000", nil)
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
}

func TestWebsocketRateLimitIgnoresForwardingFromLAN(t *testing.T) {
	c := testConfig(t)
	c.ConnectRateLimit = 2
	api := newTestAPI(t, c, nil)

	for i := 0; i < 2; i++ {
		rec := upgrade(api, "192.168.1.50:40000", http.Header{"X-Forwarded-For": {fmt.Sprintf("203.0.113.%d", i)}})
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
	rec := upgrade(api, "192.168.1.50:40000", http.Header{"X-Forwarded-For": {"203.0.113.9"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// a tunnel running on this machine still names the viewer
	rec = upgrade(api, "127.0.0.1:40000", http.Header{"X-Forwarded-For": {"203.0.113.20"}})
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
}

func TestOriginRejected(t *testing.T) {
	api := newTestAPI(t, testConfig(t), nil)
	rec := serve(api, http.MethodGet, "/health", http.Header{echo.HeaderOrigin: {"https://evil.example.com"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIsLocalRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	assert.True(t, isLocalRequest(req))

	req.Header.Set("Cf-Connecting-Ip", "198.51.100.4")
	assert.False(t, isLocalRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "192.168.1.20:50000"
	assert.False(t, isLocalRequest(req))
}
