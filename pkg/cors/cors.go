package cors

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"syncstream.pro/pkg/errs"
)

// Policy decides which origins may talk to the server
type Policy interface {
	Allowed(origin string) bool
}

// Middleware rejects requests from origins outside p and reflects allowed
// origins back so browsers accept the response.
func Middleware(p Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if !p.Allowed(origin) {
				log.Warnf("origin %q rejected for %s", origin, c.Request().URL.Path)
				return echo.NewHTTPError(http.StatusForbidden, errs.ErrOriginRejected.Error())
			}

			h := c.Response().Header()
			h.Add(echo.HeaderVary, echo.HeaderOrigin)
			if origin != "" {
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			}
			h.Set(echo.HeaderAccessControlAllowMethods, "GET, HEAD, OPTIONS")
			h.Set(echo.HeaderAccessControlAllowHeaders, "Accept,Content-Type,Range")
			h.Set(echo.HeaderAccessControlExposeHeaders, "Content-Length,Content-Range,Accept-Ranges")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
