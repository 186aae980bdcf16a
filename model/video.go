package model

import "time"

type VideoKind string

const (
	VideoEmpty          VideoKind = "empty"
	VideoLocalFile      VideoKind = "local-file"
	VideoDirectUrl      VideoKind = "direct-url"
	VideoResolvedStream VideoKind = "resolved-stream"
)

// VideoState is what the room is watching. Kind selects which of the
// source fields are meaningful; CurrentTime and IsPlaying apply to all kinds.
type VideoState struct {
	Kind  VideoKind `json:"type"`
	Title string    `json:"title,omitempty"`

	// local-file
	StreamPath string `json:"streamPath,omitempty"`
	SourcePath string `json:"-"`

	// direct-url
	URL string `json:"url,omitempty"`

	// resolved-stream
	StreamURL   string  `json:"streamUrl,omitempty"`
	OriginalURL string  `json:"originalUrl,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`

	CurrentTime float64   `json:"currentTime"`
	IsPlaying   bool      `json:"isPlaying"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VideoPatch is a partial update. Nil fields are left untouched.
type VideoPatch struct {
	CurrentTime *float64 `json:"currentTime,omitempty"`
	IsPlaying   *bool    `json:"isPlaying,omitempty"`
	Title       *string  `json:"title,omitempty"`
}

func (v *VideoState) Apply(p VideoPatch) {
	if p.CurrentTime != nil {
		v.CurrentTime = *p.CurrentTime
	}
	if p.IsPlaying != nil {
		v.IsPlaying = *p.IsPlaying
	}
	if p.Title != nil {
		v.Title = *p.Title
	}
}

func (p VideoPatch) Empty() bool {
	return p.CurrentTime == nil && p.IsPlaying == nil && p.Title == nil
}

func LocalFileVideo(streamPath, sourcePath, title string) VideoState {
	return VideoState{Kind: VideoLocalFile, StreamPath: streamPath, SourcePath: sourcePath, Title: title}
}

func DirectUrlVideo(url, title string) VideoState {
	return VideoState{Kind: VideoDirectUrl, URL: url, Title: title}
}

func ResolvedStreamVideo(streamURL, originalURL, title string, duration float64, thumbnail string) VideoState {
	return VideoState{
		Kind:        VideoResolvedStream,
		StreamURL:   streamURL,
		OriginalURL: originalURL,
		Title:       title,
		Duration:    duration,
		Thumbnail:   thumbnail,
	}
}
