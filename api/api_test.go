package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"syncstream.pro/config"
	"syncstream.pro/pkg/resolver"
	"syncstream.pro/pkg/security"
	"syncstream.pro/room"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeResolver struct {
	res     *resolver.Result
	err     error
	block   chan struct{}
	stopped chan error
}

func (f *fakeResolver) Resolve(ctx context.Context, url string) (*resolver.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			if f.stopped != nil {
				f.stopped <- ctx.Err()
			}
			return nil, ctx.Err()
		}
	}
	return f.res, f.err
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		HttpHost:         "127.0.0.1",
		HttpPort:         3000,
		StaticDir:        t.TempDir(),
		MaxWorkers:       2,
		MaxRooms:         1,
		DefaultMaxUsers:  10,
		MaxUsersLimit:    50,
		TokenTTL:         time.Hour,
		ConnectRateLimit: 10,
		CreateRateLimit:  3,
		RateWindow:       time.Minute,
		RateLimitKeys:    100,
		TunnelDomains:    security.DefaultTunnelDomains,
		PingInterval:     time.Minute,
	}
}

func newTestAPI(t *testing.T, c *config.Config, res Resolver) *API {
	t.Helper()
	rooms := room.NewManager(room.Config{
		MaxRooms:        c.MaxRooms,
		DefaultMaxUsers: c.DefaultMaxUsers,
		MaxUsersLimit:   c.MaxUsersLimit,
	}, security.NewHasher(testSecret, bcrypt.MinCost), security.NewTokens(testSecret, c.TokenTTL))
	if res == nil {
		res = &fakeResolver{err: context.Canceled}
	}

	api := New(c, rooms, res)
	t.Cleanup(func() {
		api.cancel()
		api.workerPool.StopWait()
		rooms.CloseAll()
	})
	return api
}

type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (e event) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, v))
}

// next waits for the next event queued for cl
func next(t *testing.T, cl *client) event {
	t.Helper()
	select {
	case b := <-cl.out:
		var ev event
		require.NoError(t, json.Unmarshal(b, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event for client %s", cl.id)
		return event{}
	}
}

// none asserts that nothing is queued for cl
func none(t *testing.T, cl *client) {
	t.Helper()
	select {
	case b := <-cl.out:
		t.Fatalf("unexpected event for client %s: %s", cl.id, b)
	default:
	}
}

func send(api *API, cl *client, raw string) {
	api.dispatch(cl, []byte(raw))
}
