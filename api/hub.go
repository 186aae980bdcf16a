package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/gobwas/ws"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/oklog/ulid/v2"
	"syncstream.pro/model"
	"syncstream.pro/pkg/errs"
	"syncstream.pro/pkg/metrics"
	"syncstream.pro/pkg/security"
	"syncstream.pro/pkg/utils"
	"syncstream.pro/pkg/websocket"
	"syncstream.pro/room"
)

// Endpoint to establish websocket connection
func (api *API) websocket(c echo.Context) error {
	ip := c.RealIP()
	if !api.connectLimiter.Allow(ip) {
		metrics.ConnectionsRejected.WithLabelValues("rate_limited").Inc()
		log.Warnf("connection from %s rate limited", ip)
		return errs.ErrTooManyRequests
	}

	nc, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
	if err != nil {
		// the rejection was already written to the hijacked connection
		metrics.ConnectionsRejected.WithLabelValues("upgrade").Inc()
		log.Warnf("websocket upgrade from %s: %v", ip, err)
		if nc != nil {
			_ = nc.Close()
		}
		return nil
	}

	api.serveClient(nc, api.newClient(ip, isLocalRequest(c.Request())))
	return nil
}

// dispatch decodes one command and runs it. Failures are reported to the
// sender only and never change room state.
func (api *API) dispatch(cl *client, b []byte) {
	var req websocket.Request
	if err := json.Unmarshal(b, &req); err != nil {
		cl.Send(websocket.EncodeError(errs.ErrInvalidPayload, ""))
		metrics.Commands.WithLabelValues("invalid", "error").Inc()
		return
	}
	if err := req.Validate(); err != nil {
		log.Warnf("client %s: %v", cl.id, err)
		cl.Send(websocket.EncodeError(err, req.ID))
		metrics.Commands.WithLabelValues("invalid", "error").Inc()
		return
	}

	var err error
	switch req.Event {
	case websocket.CreateRoom:
		err = api.createRoom(cl, &req)
	case websocket.JoinRoom:
		err = api.joinRoom(cl, &req)
	case websocket.LoadVideo:
		err = api.loadVideo(cl, &req)
	case websocket.ClearVideo:
		err = api.clearVideo(cl)
	case websocket.VideoControl:
		err = api.videoControl(cl, &req)
	case websocket.ChatMessage:
		err = api.chatMessage(cl, &req)
	case websocket.Typing:
		err = api.typing(cl, &req)
	}

	if err != nil {
		log.Warnf("client %s %s: %v", cl.id, req.Event, err)
		cl.Send(websocket.EncodeError(err, req.ID))
		metrics.Commands.WithLabelValues(req.Event, "error").Inc()
		return
	}
	metrics.Commands.WithLabelValues(req.Event, "ok").Inc()
}

func (api *API) createRoom(cl *client, req *websocket.Request) error {
	if cl.roomID != "" {
		return errs.ErrAlreadyInRoom
	}
	var p websocket.CreateRoomParams
	if err := req.Decode(&p); err != nil {
		return err
	}
	if !api.createLimiter.Allow(cl.ip) {
		return errs.ErrTooManyRequests
	}

	info, err := api.rooms.Create(room.CreateParams{
		Name:     p.RoomName,
		Password: p.Password,
		Privacy:  p.Privacy,
		MaxUsers: p.MaxUsers,
	})
	if err != nil {
		return err
	}
	a, err := api.rooms.Lookup(info.ID)
	if err != nil {
		return err
	}

	var joinErr error
	err = a.Do(cl.ctx, func(r *model.Room) {
		var u *model.User
		if u, joinErr = api.rooms.Admit(r, room.JoinParams{
			ConnID:   cl.id,
			Name:     p.UserName,
			Password: p.Password,
			Conn:     cl,
		}); joinErr != nil {
			return
		}
		joinErr = api.sendJoined(cl, r, u, websocket.RoomCreated)
	})
	if err == nil {
		err = joinErr
	}
	if err != nil {
		api.rooms.Close(info.ID)
		return err
	}

	cl.roomID = info.ID
	log.Infof("client %s created room %s as %s", cl.id, info.ID, p.UserName)
	return nil
}

func (api *API) joinRoom(cl *client, req *websocket.Request) error {
	if cl.roomID != "" {
		return errs.ErrAlreadyInRoom
	}
	var p websocket.JoinRoomParams
	if err := req.Decode(&p); err != nil {
		return err
	}
	a, err := api.rooms.Lookup(p.RoomID)
	if err != nil {
		return err
	}

	var joinErr error
	err = a.Do(cl.ctx, func(r *model.Room) {
		var u *model.User
		if u, joinErr = api.rooms.Admit(r, room.JoinParams{
			ConnID:   cl.id,
			Name:     p.UserName,
			Password: p.Password,
			Token:    p.Token,
			Conn:     cl,
		}); joinErr != nil {
			return
		}
		if joinErr = api.sendJoined(cl, r, u, websocket.RoomJoined); joinErr != nil {
			api.rooms.Leave(r, u.ID)
			return
		}
		r.BroadcastExcept(u.ID, websocket.Encode(websocket.UserJoined, &websocket.UserJoinedPayload{
			User:      *u,
			UserCount: r.UserCount(),
		}))
	})
	if err == nil {
		err = joinErr
	}
	if err != nil {
		return err
	}

	cl.roomID = p.RoomID
	log.Infof("client %s joined room %s as %s", cl.id, p.RoomID, p.UserName)
	return nil
}

// sendJoined replies to a new member with the room snapshot and its token
func (api *API) sendJoined(cl *client, r *model.Room, u *model.User, event string) error {
	token, err := api.rooms.Token(r.ID, u)
	if err != nil {
		return err
	}
	cl.Send(websocket.Encode(event, &websocket.RoomJoinedPayload{
		Room:  r.PublicInfo(),
		User:  *u,
		Token: token,
	}))
	return nil
}

// member runs fn on the sender's room. It reports ErrNotInRoom when the
// sender never joined one.
func (api *API) member(cl *client, fn func(r *model.Room)) error {
	if cl.roomID == "" {
		return errs.ErrNotInRoom
	}
	a, err := api.rooms.Lookup(cl.roomID)
	if err != nil {
		return err
	}
	return a.Do(cl.ctx, fn)
}

// admin runs fn on the sender's room if the sender is its admin
func (api *API) admin(cl *client, fn func(r *model.Room)) error {
	var allowed bool
	err := api.member(cl, func(r *model.Room) {
		if allowed = r.IsAdmin(cl.id); allowed {
			fn(r)
		}
	})
	if err != nil {
		return err
	}
	if !allowed {
		return errs.ErrNotAdmin
	}
	return nil
}

func (api *API) loadVideo(cl *client, req *websocket.Request) error {
	var p websocket.LoadVideoParams
	if err := req.Decode(&p); err != nil {
		return err
	}
	if err := api.admin(cl, func(*model.Room) {}); err != nil {
		return err
	}

	switch {
	case p.FilePath != "":
		return api.loadLocalFile(cl, &p)
	case utils.IsDirectMediaUrl(p.URL):
		title := p.Title
		if u, err := url.Parse(p.URL); title == "" && err == nil {
			title = path.Base(u.Path)
		}
		return api.setVideo(cl, model.DirectUrlVideo(p.URL, security.Sanitize(title)))
	default:
		api.resolve(cl, req.ID, &p)
		return nil
	}
}

func (api *API) loadLocalFile(cl *client, p *websocket.LoadVideoParams) error {
	if !cl.local && !api.config.AllowRemoteFiles {
		return errs.ErrForbiddenFile
	}
	abs, err := filepath.Abs(p.FilePath)
	if err != nil {
		return errs.ErrFileNotFound
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return errs.ErrFileNotFound
	}

	title := p.Title
	if title == "" {
		title = filepath.Base(abs)
	}
	return api.setVideo(cl, model.LocalFileVideo("/stream/"+cl.roomID+"/video", abs, security.Sanitize(title)))
}

// setVideo replaces the room's video and tells everyone, the sender included
func (api *API) setVideo(cl *client, v model.VideoState) error {
	return api.admin(cl, func(r *model.Room) {
		r.SetVideo(v, api.now())
		r.Broadcast(websocket.Encode(websocket.VideoLoaded, &websocket.VideoLoadedPayload{
			Video:    r.Video,
			LoadedBy: cl.id,
		}))
		log.Infof("room %s loaded %s video %q", r.ID, v.Kind, v.Title)
	})
}

// resolve runs the resolver on the worker pool. The job is cancelled with the
// requester's connection and its result is dropped if the requester is no
// longer admin by the time it arrives.
func (api *API) resolve(cl *client, requestID string, p *websocket.LoadVideoParams) {
	cl.Send(websocket.Encode(websocket.VideoResolving, &websocket.VideoResolvingPayload{URL: p.URL}))
	roomID, target, title := cl.roomID, p.URL, p.Title

	api.workerPool.Submit(func() {
		res, err := api.resolver.Resolve(cl.ctx, target)
		if err != nil {
			metrics.Resolver.WithLabelValues(errs.Code(err)).Inc()
			if cl.ctx.Err() != nil {
				log.Infof("resolving %s abandoned, client %s is gone", target, cl.id)
				return
			}
			log.Warnf("resolving %s: %v", target, err)
			cl.Send(websocket.EncodeError(err, requestID))
			return
		}
		metrics.Resolver.WithLabelValues("ok").Inc()

		if title == "" {
			title = res.Title
		}
		v := model.ResolvedStreamVideo(res.StreamURL, res.OriginalURL, security.Sanitize(title), res.Duration, res.Thumbnail)

		a, err := api.rooms.Lookup(roomID)
		if err != nil {
			return
		}
		err = a.Do(context.Background(), func(r *model.Room) {
			if !r.IsAdmin(cl.id) {
				log.Infof("dropping resolved %s, client %s is no longer admin of %s", target, cl.id, r.ID)
				return
			}
			r.SetVideo(v, api.now())
			r.Broadcast(websocket.Encode(websocket.VideoLoaded, &websocket.VideoLoadedPayload{
				Video:    r.Video,
				LoadedBy: cl.id,
			}))
			log.Infof("room %s loaded resolved stream for %s", r.ID, target)
		})
		if err != nil && !errors.Is(err, errs.ErrRoomNotFound) {
			log.Error(err)
		}
	})
}

func (api *API) clearVideo(cl *client) error {
	return api.admin(cl, func(r *model.Room) {
		r.ClearVideo(api.now())
		r.Broadcast(websocket.Encode(websocket.VideoCleared, nil))
	})
}

// videoControl from anyone but the admin is ignored
func (api *API) videoControl(cl *client, req *websocket.Request) error {
	var p websocket.VideoControlParams
	if err := req.Decode(&p); err != nil {
		return err
	}
	err := api.admin(cl, func(r *model.Room) {
		r.UpdateVideoState(p.Patch(), api.now())
		r.BroadcastExcept(cl.id, websocket.Encode(websocket.VideoSync, &websocket.VideoControlPayload{
			Action:      p.Action,
			CurrentTime: r.Video.CurrentTime,
			IsPlaying:   r.Video.IsPlaying,
			UserID:      cl.id,
		}))
	})
	return ignoreMembership(err)
}

func (api *API) chatMessage(cl *client, req *websocket.Request) error {
	var p websocket.ChatMessageParams
	if err := req.Decode(&p); err != nil {
		return err
	}
	err := api.member(cl, func(r *model.Room) {
		u, ok := r.User(cl.id)
		if !ok {
			return
		}
		r.Broadcast(websocket.Encode(websocket.ChatBroadcast, &websocket.ChatPayload{
			ID:        ulid.Make().String(),
			UserID:    u.ID,
			UserName:  u.Name,
			IsAdmin:   u.IsAdmin,
			Message:   security.Sanitize(p.Message),
			Timestamp: api.now(),
		}))
	})
	return ignoreMembership(err)
}

func (api *API) typing(cl *client, req *websocket.Request) error {
	var p websocket.TypingParams
	if err := req.Decode(&p); err != nil {
		return err
	}
	err := api.member(cl, func(r *model.Room) {
		u, ok := r.User(cl.id)
		if !ok {
			return
		}
		r.BroadcastExcept(u.ID, websocket.Encode(websocket.UserTyping, &websocket.TypingPayload{
			UserID:   u.ID,
			UserName: u.Name,
			IsTyping: p.IsTyping,
		}))
	})
	return ignoreMembership(err)
}

// leave runs when a connection closes
func (api *API) leave(cl *client) {
	if cl.roomID == "" {
		return
	}
	roomID := cl.roomID
	cl.roomID = ""

	a, err := api.rooms.Lookup(roomID)
	if err != nil {
		return
	}
	err = a.Do(context.Background(), func(r *model.Room) {
		removed, promoted := api.rooms.Leave(r, cl.id)
		if removed == nil {
			return
		}
		r.Broadcast(websocket.Encode(websocket.UserLeft, &websocket.UserLeftPayload{
			UserID:    removed.ID,
			UserName:  removed.Name,
			UserCount: r.UserCount(),
			NewAdmin:  promoted,
		}))
		if promoted != nil {
			log.Infof("room %s: %s left, %s is admin now", r.ID, removed.Name, promoted.Name)
		}
	})
	if err != nil && !errors.Is(err, errs.ErrRoomNotFound) {
		log.Error(err)
	}
}

// ignoreMembership drops the errors of commands that fail silently
func ignoreMembership(err error) error {
	if errors.Is(err, errs.ErrNotInRoom) || errors.Is(err, errs.ErrRoomNotFound) || errors.Is(err, errs.ErrNotAdmin) {
		return nil
	}
	return err
}
