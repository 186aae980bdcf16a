package api

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"syncstream.pro/pkg/byterange"
	"syncstream.pro/pkg/errs"
	"syncstream.pro/pkg/metrics"
	"syncstream.pro/pkg/utils"
)

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".ogg":  "video/ogg",
	".ogv":  "video/ogg",
	".avi":  "video/x-msvideo",
}

// Serves the room's local video file with byte-range support
func (api *API) streamVideo(c echo.Context) error {
	roomID := strings.ToUpper(c.Param("roomID"))
	if !utils.IsRoomIDValid(roomID) {
		return errs.ErrRoomNotFound
	}
	path, err := api.rooms.LocalFile(c.Request().Context(), roomID)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.ErrFileNotFound
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errs.ErrFileNotFound
	}
	size := info.Size()

	h := c.Response().Header()
	h.Set("Accept-Ranges", "bytes")

	if header := c.Request().Header.Get("Range"); header != "" {
		rng, err := byterange.Parse(header, size)
		switch {
		case err == nil:
			h.Set(echo.HeaderContentType, contentType(path))
			h.Set("Content-Range", rng.ContentRange())
			h.Set(echo.HeaderContentLength, strconv.FormatInt(rng.Length(), 10))
			return api.sendBody(c, http.StatusPartialContent, io.NewSectionReader(f, rng.Start, rng.Length()))
		case !errors.Is(err, byterange.ErrUnsupported):
			h.Set("Content-Range", byterange.Unsatisfied(size))
			return err
		}
	}

	h.Set(echo.HeaderContentType, contentType(path))
	h.Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	return api.sendBody(c, http.StatusOK, io.NewSectionReader(f, 0, size))
}

func (api *API) sendBody(c echo.Context, status int, body io.Reader) error {
	c.Response().WriteHeader(status)
	if c.Request().Method == http.MethodHead {
		return nil
	}
	n, err := io.Copy(c.Response(), body)
	metrics.StreamedBytes.Add(float64(n))
	if err != nil {
		// viewers seek and drop connections all the time
		log.Debugf("stream %s: %v after %d bytes", c.Request().URL.Path, err, n)
	}
	return nil
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return echo.MIMEOctetStream
}
