package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"syncstream.pro/model"
	"syncstream.pro/pkg/errs"
	"syncstream.pro/pkg/utils"
)

// Client commands
const (
	CreateRoom   = "create-room"
	JoinRoom     = "join-room"
	LoadVideo    = "load-video"
	ClearVideo   = "clear-video"
	VideoControl = "video-control"
	ChatMessage  = "chat-message"
	Typing       = "typing"
)

// Server events
const (
	RoomCreated    = "room-created"
	RoomJoined     = "room-joined"
	UserJoined     = "user-joined"
	UserLeft       = "user-left"
	VideoResolving = "video-resolving"
	VideoLoaded    = "video-loaded"
	VideoCleared   = "video-cleared"
	VideoSync      = "video-control"
	ChatBroadcast  = "chat-message"
	UserTyping     = "user-typing"
	Error          = "error"
)

const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"

	MaxChatLength = 500
)

type (
	// Request is a command sent by a client. ID is optional and echoed in errors.
	Request struct {
		ID    string          `json:"id,omitempty"`
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}

	// Event is pushed by the server.
	Event struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data,omitempty"`
	}

	CreateRoomParams struct {
		RoomName string        `json:"roomName"`
		UserName string        `json:"userName"`
		Password string        `json:"password"`
		Privacy  model.Privacy `json:"privacy"`
		MaxUsers int           `json:"maxUsers"`
	}

	JoinRoomParams struct {
		RoomID   string `json:"roomId"`
		UserName string `json:"userName"`
		Password string `json:"password"`
		Token    string `json:"token"`
	}

	LoadVideoParams struct {
		URL      string `json:"url"`
		FilePath string `json:"filePath"`
		Title    string `json:"title"`
	}

	VideoControlParams struct {
		Action      string   `json:"action"`
		CurrentTime *float64 `json:"currentTime"`
	}

	ChatMessageParams struct {
		Message string `json:"message"`
	}

	TypingParams struct {
		IsTyping bool `json:"isTyping"`
	}
)

type (
	RoomJoinedPayload struct {
		Room  model.PublicInfo `json:"room"`
		User  model.User       `json:"user"`
		Token string           `json:"token"`
	}

	UserJoinedPayload struct {
		User      model.User `json:"user"`
		UserCount int        `json:"userCount"`
	}

	UserLeftPayload struct {
		UserID    string      `json:"userId"`
		UserName  string      `json:"userName"`
		UserCount int         `json:"userCount"`
		NewAdmin  *model.User `json:"newAdmin,omitempty"`
	}

	VideoResolvingPayload struct {
		URL string `json:"url"`
	}

	VideoLoadedPayload struct {
		Video    model.VideoState `json:"videoState"`
		LoadedBy string           `json:"loadedBy"`
	}

	VideoControlPayload struct {
		Action      string  `json:"action"`
		CurrentTime float64 `json:"currentTime"`
		IsPlaying   bool    `json:"isPlaying"`
		UserID      string  `json:"userId"`
	}

	ChatPayload struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		UserName  string    `json:"userName"`
		IsAdmin   bool      `json:"isAdmin"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	}

	TypingPayload struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
		IsTyping bool   `json:"isTyping"`
	}

	ErrorPayload struct {
		Message   string `json:"message"`
		Code      string `json:"code"`
		RequestID string `json:"requestId,omitempty"`
	}
)

// Encode marshals an event. Event payloads are plain structs, so failure is a programming error.
func Encode(event string, data interface{}) []byte {
	b, err := json.Marshal(&Event{Event: event, Data: data})
	if err != nil {
		panic(fmt.Sprintf("encode %s: %v", event, err))
	}
	return b
}

// EncodeError builds the error event for err
func EncodeError(err error, requestID string) []byte {
	return Encode(Error, &ErrorPayload{Message: errs.Message(err), Code: errs.Code(err), RequestID: requestID})
}

func (m *Request) Validate() error {
	switch m.Event {
	case CreateRoom, JoinRoom, LoadVideo, ClearVideo, VideoControl, ChatMessage, Typing:
		return nil
	}
	return errs.ErrInvalidPayload.Withf("unknown event '%s'", m.Event)
}

// Decode unmarshals the request data into params and validates it when possible.
func (m *Request) Decode(params interface{}) error {
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, params); err != nil {
			return errs.ErrInvalidPayload.Withf("%v", err)
		}
	}
	if v, ok := params.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// Validate normalises p in place: a password makes the room private.
func (p *CreateRoomParams) Validate() error {
	p.RoomName = strings.TrimSpace(p.RoomName)
	p.UserName = strings.TrimSpace(p.UserName)
	if !utils.IsRoomNameValid(p.RoomName) {
		return errs.ErrInvalidPayload.Withf("room name must be 1-50 characters")
	}
	if !utils.IsNameValid(p.UserName) {
		return errs.ErrInvalidName
	}
	if p.MaxUsers < 0 {
		return errs.ErrInvalidPayload.Withf("maxUsers must be positive")
	}
	switch p.Privacy {
	case "":
		p.Privacy = model.Public
		if p.Password != "" {
			p.Privacy = model.Private
		}
	case model.Public:
		if p.Password != "" {
			p.Privacy = model.Private
		}
	case model.Private:
		if p.Password == "" {
			return errs.ErrInvalidPayload.Withf("a private room needs a password")
		}
	default:
		return errs.ErrInvalidPayload.Withf("unknown privacy '%s'", p.Privacy)
	}
	return nil
}

func (p *JoinRoomParams) Validate() error {
	p.RoomID = strings.ToUpper(strings.TrimSpace(p.RoomID))
	p.UserName = strings.TrimSpace(p.UserName)
	if !utils.IsRoomIDValid(p.RoomID) {
		return errs.ErrInvalidRoomID
	}
	if !utils.IsNameValid(p.UserName) {
		return errs.ErrInvalidName
	}
	return nil
}

func (p *LoadVideoParams) Validate() error {
	p.URL = strings.TrimSpace(p.URL)
	p.FilePath = strings.TrimSpace(p.FilePath)
	p.Title = strings.TrimSpace(p.Title)
	switch {
	case p.URL == "" && p.FilePath == "":
		return errs.ErrInvalidPayload.Withf("url or filePath is required")
	case p.URL != "" && p.FilePath != "":
		return errs.ErrInvalidPayload.Withf("url and filePath are exclusive")
	case p.URL != "" && !utils.IsUrlValid(p.URL):
		return errs.ErrInvalidUrl
	}
	if !utils.IsLengthValid(p.Title, 0, 200) {
		return errs.ErrInvalidPayload.Withf("title is too long")
	}
	return nil
}

func (p *VideoControlParams) Validate() error {
	switch p.Action {
	case ActionPlay, ActionPause:
	case ActionSeek:
		if p.CurrentTime == nil {
			return errs.ErrInvalidPayload.Withf("seek needs currentTime")
		}
	default:
		return errs.ErrInvalidPayload.Withf("unknown action '%s'", p.Action)
	}
	if p.CurrentTime != nil && *p.CurrentTime < 0 {
		return errs.ErrInvalidPayload.Withf("currentTime must not be negative")
	}
	return nil
}

// Patch converts the control into a video state update
func (p *VideoControlParams) Patch() model.VideoPatch {
	var patch model.VideoPatch
	patch.CurrentTime = p.CurrentTime
	switch p.Action {
	case ActionPlay:
		playing := true
		patch.IsPlaying = &playing
	case ActionPause:
		playing := false
		patch.IsPlaying = &playing
	}
	return patch
}

func (p *ChatMessageParams) Validate() error {
	p.Message = strings.TrimSpace(p.Message)
	if !utils.IsLengthValid(p.Message, 1, MaxChatLength) {
		return errs.ErrInvalidPayload.Withf("message must be 1-%d characters", MaxChatLength)
	}
	return nil
}
