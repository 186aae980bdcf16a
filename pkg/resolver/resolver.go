package resolver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"syncstream.pro/pkg/errs"
)

// Result is a platform URL turned into something a browser can play.
type Result struct {
	OriginalURL string
	StreamURL   string
	Title       string
	Duration    float64
	Thumbnail   string
	Format      Format
}

// Resolver runs an external metadata extractor (yt-dlp compatible) and picks a
// playable stream from its JSON output.
type Resolver struct {
	binaries []string
	timeout  time.Duration
}

// New returns a Resolver trying primary first and fallback second.
func New(primary, fallback string, timeout time.Duration) *Resolver {
	var bins []string
	for _, b := range []string{primary, fallback} {
		if b = strings.TrimSpace(b); b != "" {
			bins = append(bins, b)
		}
	}
	return &Resolver{binaries: bins, timeout: timeout}
}

// Resolve blocks until the extractor finishes, the timeout passes or ctx is done.
// A missing or failing primary binary falls through to the fallback once.
func (r *Resolver) Resolve(ctx context.Context, url string) (*Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var lastErr error = errs.ErrResolverUnavailable
	for _, name := range r.binaries {
		bin, err := exec.LookPath(name)
		if err != nil {
			log.Warnf("resolver %s not available: %v", name, err)
			continue
		}

		out, err := r.run(ctx, bin, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errs.ErrResolverFailed, ctx.Err())
			}
			log.Warnf("resolver %s failed for %s: %v", name, url, err)
			lastErr = fmt.Errorf("%w: %s: %v", errs.ErrResolverFailed, name, err)
			continue
		}

		meta, err := Parse(out)
		if err != nil {
			return nil, err
		}
		f, err := meta.Best()
		if err != nil {
			return nil, err
		}
		return &Result{
			OriginalURL: url,
			StreamURL:   f.URL,
			Title:       meta.Title,
			Duration:    meta.Duration,
			Thumbnail:   meta.Thumbnail,
			Format:      f,
		}, nil
	}
	return nil, lastErr
}

func (r *Resolver) run(ctx context.Context, bin, url string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, "--dump-single-json", "--no-playlist", "--no-warnings", "--", url)
	cmd.WaitDelay = time.Second
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%v: %s", err, firstLine(exitErr.Stderr))
		}
		return nil, err
	}
	return out, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
