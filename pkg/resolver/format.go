package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"syncstream.pro/pkg/errs"
)

// Format is one downloadable rendition reported by the resolver.
type Format struct {
	ID       string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	VCodec   string  `json:"vcodec"`
	ACodec   string  `json:"acodec"`
	Height   int     `json:"height"`
	TBR      float64 `json:"tbr"`
	Protocol string  `json:"protocol"`
}

func (f Format) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f Format) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// Compatible reports whether every target player can open the container.
func (f Format) Compatible() bool {
	return strings.EqualFold(f.Ext, "mp4")
}

// Metadata is the part of the resolver's JSON document we use.
type Metadata struct {
	Title      string   `json:"title"`
	Duration   float64  `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	WebpageURL string   `json:"webpage_url"`
	URL        string   `json:"url"`
	Ext        string   `json:"ext"`
	Formats    []Format `json:"formats"`
}

// Parse decodes the resolver's structured output.
func Parse(b []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrResolverParse, err)
	}
	if len(m.Formats) == 0 && m.URL == "" {
		return nil, fmt.Errorf("%w: no formats and no url", errs.ErrResolverParse)
	}
	return &m, nil
}

// Best picks the format to play. A document without a format list stands for
// its single top-level url.
func (m *Metadata) Best() (Format, error) {
	if len(m.Formats) == 0 {
		return Format{ID: "default", URL: m.URL, Ext: m.Ext}, nil
	}
	return SelectFormat(m.Formats)
}

// SelectFormat prefers a format carrying both video and audio in a compatible
// container, then any format carrying video. Ties go to the higher resolution,
// then the higher bitrate, then the later entry.
func SelectFormat(formats []Format) (Format, error) {
	tiers := []func(Format) bool{
		func(f Format) bool { return f.HasVideo() && f.HasAudio() && f.Compatible() },
		func(f Format) bool { return f.HasVideo() },
	}
	for _, match := range tiers {
		best, found := Format{}, false
		for _, f := range formats {
			if f.URL == "" || !match(f) {
				continue
			}
			if !found || better(f, best) {
				best, found = f, true
			}
		}
		if found {
			return best, nil
		}
	}
	return Format{}, errs.ErrNoPlayableFormat
}

func better(a, b Format) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return a.TBR >= b.TBR
}
