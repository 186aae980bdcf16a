package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"syncstream.pro/config"
	"syncstream.pro/pkg/cors"
	"syncstream.pro/pkg/errs"
	"syncstream.pro/pkg/metrics"
	"syncstream.pro/pkg/ratelimit"
	"syncstream.pro/pkg/resolver"
	"syncstream.pro/pkg/security"
	"syncstream.pro/room"
)

// Resolver turns a platform URL into a playable stream
type Resolver interface {
	Resolve(ctx context.Context, url string) (*resolver.Result, error)
}

type API struct {
	echo           *echo.Echo
	config         *config.Config
	rooms          *room.Manager
	resolver       Resolver
	workerPool     *workerpool.WorkerPool
	origins        *security.OriginPolicy
	connectLimiter *ratelimit.Limiter
	createLimiter  *ratelimit.Limiter
	httpClient     *http.Client
	connections    atomic.Int64
	startedAt      time.Time
	now            func() time.Time

	// parent of every client context, cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc
}

func New(c *config.Config, rooms *room.Manager, res Resolver) *API {
	ctx, cancel := context.WithCancel(context.Background())
	api := &API{
		echo:           echo.New(),
		config:         c,
		rooms:          rooms,
		resolver:       res,
		workerPool:     workerpool.New(c.MaxWorkers),
		origins:        security.NewOriginPolicy(c.TunnelDomains),
		connectLimiter: ratelimit.New(c.ConnectRateLimit, c.RateWindow, c.RateLimitKeys),
		createLimiter:  ratelimit.New(c.CreateRateLimit, c.RateWindow, c.RateLimitKeys),
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		startedAt:      time.Now(),
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
	}

	api.echo.HideBanner = true
	api.echo.HidePort = true
	api.echo.Logger = log.New("echo")
	api.echo.Logger.SetLevel(log.Level())
	// only a proxy or tunnel on this machine may name the client address
	api.echo.IPExtractor = echo.ExtractIPFromXFFHeader(echo.TrustPrivateNet(false), echo.TrustLinkLocal(false))
	api.echo.HTTPErrorHandler = api.errorHandler

	api.echo.Use(middleware.Recover())
	api.echo.Use(middleware.RequestID())
	api.echo.Use(cors.Middleware(api.origins))

	api.echo.Static("/", c.StaticDir)
	api.echo.GET("/join/:roomID", api.join)
	api.echo.GET("/api/room/:roomID/info", api.roomInfo)
	api.echo.GET("/api/network-info", api.networkInfo)
	api.echo.GET("/api/public-ip", api.publicIP)
	api.echo.GET("/health", api.health)
	api.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	api.echo.Any("/ws", api.websocket)

	api.echo.GET("/stream/:roomID/video", api.streamVideo)
	api.echo.HEAD("/stream/:roomID/video", api.streamVideo)
	api.echo.GET("/stream/:roomID/manifest.m3u8", api.notImplemented)
	api.echo.GET("/stream/:roomID/:quality/:segment", api.notImplemented)

	return api
}

func (api *API) Addr() string {
	return net.JoinHostPort(api.config.HttpHost, strconv.Itoa(api.config.HttpPort))
}

func (api *API) Start() error {
	log.Infof("listening on %s", api.Addr())
	err := api.echo.Start(api.Addr())
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops accepting requests, disconnects every client, waits for resolver
// jobs within ctx and closes every room.
func (api *API) Close(ctx context.Context) error {
	err := api.echo.Shutdown(ctx)
	// hijacked websocket connections are not tracked by the http server
	api.cancel()

	stopped := make(chan struct{})
	go func() {
		api.workerPool.StopWait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		log.Warn("resolver jobs still running at shutdown")
		if err == nil {
			err = ctx.Err()
		}
	}

	api.rooms.CloseAll()
	return err
}

// errorHandler renders errors as {"message","code"} with the status of their category.
func (api *API) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := errs.ToHTTP(err)
	body := map[string]string{"message": errs.Message(err), "code": errs.Code(err)}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		body = map[string]string{"message": http.StatusText(he.Code), "code": strconv.Itoa(he.Code)}
		if msg, ok := he.Message.(string); ok {
			body["message"] = msg
		}
	}
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		log.Error(err)
	}
}
