package byterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"syncstream.pro/pkg/errs"
)

// ErrUnsupported is returned for headers a server should ignore: units other
// than bytes and multiple ranges. The full resource is served instead.
var ErrUnsupported = errors.New("unsupported range")

// Range is an inclusive byte range within a resource of Size bytes.
type Range struct {
	Start int64
	End   int64
	Size  int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for r
func (r Range) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Size)
}

// Unsatisfied is the Content-Range value sent with a 416 response.
func Unsatisfied(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Parse parses a single-range "bytes=start-end" header against a resource of
// size bytes. A missing end reads to the last byte, an end past the last byte is
// clamped, and "bytes=-n" selects the final n bytes.
func Parse(header string, size int64) (Range, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return Range{}, ErrUnsupported
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok || size <= 0 {
		return Range{}, errs.ErrRangeNotSatisfiable
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	r := Range{Size: size, End: size - 1}
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return Range{}, errs.ErrRangeNotSatisfiable
		}
		if n < size {
			r.Start = size - n
		}
		return r, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return Range{}, errs.ErrRangeNotSatisfiable
	}
	r.Start = start
	if endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return Range{}, errs.ErrRangeNotSatisfiable
		}
		if end < r.End {
			r.End = end
		}
	}
	return r, nil
}
