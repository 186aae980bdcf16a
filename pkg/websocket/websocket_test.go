package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"syncstream.pro/model"
	"syncstream.pro/pkg/errs"
)

func request(t *testing.T, raw string) *Request {
	t.Helper()
	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return &req
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, request(t, `{"event":"chat-message","data":{"message":"hi"}}`).Validate())
	assert.ErrorIs(t, request(t, `{"event":"drop-tables"}`).Validate(), errs.ErrInvalidPayload)
}

func TestDecodeCreateRoom(t *testing.T) {
	var p CreateRoomParams
	req := request(t, `{"event":"create-room","data":{"roomName":" Movie Night ","userName":"Alice","password":"pw"}}`)
	require.NoError(t, req.Decode(&p))
	assert.Equal(t, "Movie Night", p.RoomName)
	assert.Equal(t, model.Private, p.Privacy)

	p = CreateRoomParams{}
	req = request(t, `{"event":"create-room","data":{"roomName":"x","userName":"Alice","privacy":"private"}}`)
	assert.ErrorIs(t, req.Decode(&p), errs.ErrInvalidPayload)

	p = CreateRoomParams{}
	req = request(t, `{"event":"create-room","data":{"roomName":"x","userName":"A"}}`)
	assert.ErrorIs(t, req.Decode(&p), errs.ErrInvalidName)

	p = CreateRoomParams{}
	req = request(t, `{"event":"create-room","data":"nope"}`)
	assert.ErrorIs(t, req.Decode(&p), errs.ErrInvalidPayload)
}

func TestDecodeJoinRoom(t *testing.T) {
	var p JoinRoomParams
	req := request(t, `{"event":"join-room","data":{"roomId":" abcdefgh ","userName":"Bob"}}`)
	require.NoError(t, req.Decode(&p))
	assert.Equal(t, "ABCDEFGH", p.RoomID)

	p = JoinRoomParams{}
	req = request(t, `{"event":"join-room","data":{"roomId":"ABC","userName":"Bob"}}`)
	assert.ErrorIs(t, req.Decode(&p), errs.ErrInvalidRoomID)
}

func TestDecodeLoadVideo(t *testing.T) {
	var p LoadVideoParams
	assert.ErrorIs(t, request(t, `{"event":"load-video","data":{}}`).Decode(&p), errs.ErrInvalidPayload)

	p = LoadVideoParams{}
	assert.ErrorIs(t, request(t, `{"event":"load-video","data":{"url":"ftp://x.org/a.mp4"}}`).Decode(&p), errs.ErrInvalidUrl)

	p = LoadVideoParams{}
	assert.ErrorIs(t, request(t, `{"event":"load-video","data":{"url":"https://x.org/a.mp4","filePath":"/tmp/a.mp4"}}`).Decode(&p), errs.ErrInvalidPayload)

	p = LoadVideoParams{}
	assert.NoError(t, request(t, `{"event":"load-video","data":{"filePath":"/tmp/a.mp4"}}`).Decode(&p))
}

func TestVideoControlPatch(t *testing.T) {
	var p VideoControlParams
	require.NoError(t, request(t, `{"event":"video-control","data":{"action":"play","currentTime":12.5}}`).Decode(&p))
	patch := p.Patch()
	require.NotNil(t, patch.IsPlaying)
	assert.True(t, *patch.IsPlaying)
	assert.Equal(t, 12.5, *patch.CurrentTime)

	p = VideoControlParams{}
	require.NoError(t, request(t, `{"event":"video-control","data":{"action":"seek","currentTime":42}}`).Decode(&p))
	patch = p.Patch()
	assert.Nil(t, patch.IsPlaying)
	assert.Equal(t, 42.0, *patch.CurrentTime)

	p = VideoControlParams{}
	assert.ErrorIs(t, request(t, `{"event":"video-control","data":{"action":"seek"}}`).Decode(&p), errs.ErrInvalidPayload)
	p = VideoControlParams{}
	assert.ErrorIs(t, request(t, `{"event":"video-control","data":{"action":"rewind"}}`).Decode(&p), errs.ErrInvalidPayload)
}

func TestChatMessageValidate(t *testing.T) {
	p := ChatMessageParams{Message: "   "}
	assert.Error(t, p.Validate())
	p = ChatMessageParams{Message: string(make([]byte, MaxChatLength+1))}
	assert.Error(t, p.Validate())
	p = ChatMessageParams{Message: " hi "}
	require.NoError(t, p.Validate())
	assert.Equal(t, "hi", p.Message)
}

func TestEncodeError(t *testing.T) {
	var ev struct {
		Event string       `json:"event"`
		Data  ErrorPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(EncodeError(errs.ErrWrongPassword, "r1"), &ev))
	assert.Equal(t, Error, ev.Event)
	assert.Equal(t, "Incorrect password", ev.Data.Message)
	assert.Equal(t, "wrong_password", ev.Data.Code)
	assert.Equal(t, "r1", ev.Data.RequestID)

	require.NoError(t, json.Unmarshal(EncodeError(errors.New("disk on fire"), ""), &ev))
	assert.Equal(t, "internal", ev.Data.Code)
	assert.Equal(t, "Internal error", ev.Data.Message)
}
