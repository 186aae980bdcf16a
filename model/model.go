package model

import (
	"time"

	"syncstream.pro/pkg/errs"
	"syncstream.pro/pkg/utils"
)

type Privacy string

const (
	Public  Privacy = "public"
	Private Privacy = "private"
)

// Sink receives encoded events for one connection. Send must not block.
type Sink interface {
	Send(p []byte)
}

type (
	// Room is the live watch session. It is not safe for concurrent use;
	// all access goes through the owning room actor.
	Room struct {
		ID           string     `json:"id"`
		Name         string     `json:"name"`
		PasswordHash string     `json:"-"`
		Privacy      Privacy    `json:"privacy"`
		MaxUsers     int        `json:"maxUsers"`
		Admin        *User      `json:"-"`
		Video        VideoState `json:"videoState"`
		CreatedAt    time.Time  `json:"createdAt"`

		users map[string]*User
		order []string
	}

	User struct {
		ID       string    `json:"id"`
		Name     string    `json:"name"`
		IsAdmin  bool      `json:"isAdmin"`
		JoinedAt time.Time `json:"joinedAt"`
		Conn     Sink      `json:"-"`
	}

	// PublicInfo is the projection of a Room safe to hand to anyone.
	PublicInfo struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		Privacy     Privacy    `json:"privacy"`
		HasPassword bool       `json:"hasPassword"`
		MaxUsers    int        `json:"maxUsers"`
		UserCount   int        `json:"userCount"`
		Users       []User     `json:"users"`
		AdminID     string     `json:"adminId,omitempty"`
		Video       VideoState `json:"videoState"`
		CreatedAt   time.Time  `json:"createdAt"`
	}
)

func NewRoom(id, name, passwordHash string, privacy Privacy, maxUsers int, now time.Time) *Room {
	return &Room{
		ID:           id,
		Name:         name,
		PasswordHash: passwordHash,
		Privacy:      privacy,
		MaxUsers:     maxUsers,
		Video:        VideoState{Kind: VideoEmpty, UpdatedAt: now},
		CreatedAt:    now,
		users:        make(map[string]*User),
	}
}

func (r *Room) Valid() bool {
	if !utils.IsRoomIDValid(r.ID) || !utils.IsRoomNameValid(r.Name) || r.MaxUsers < 1 {
		return false
	}
	switch r.Privacy {
	case Public:
		return r.PasswordHash == ""
	case Private:
		return r.PasswordHash != ""
	}
	return false
}

// AddUser admits u. The first user of an empty room becomes its admin.
func (r *Room) AddUser(u *User) error {
	if !utils.IsNameValid(u.Name) {
		return errs.ErrInvalidName
	}
	if _, exists := r.users[u.ID]; exists {
		return errs.ErrAlreadyInRoom
	}
	if len(r.users) >= r.MaxUsers {
		return errs.ErrRoomFull
	}

	u.IsAdmin = len(r.users) == 0
	if u.IsAdmin {
		r.Admin = u
	}
	r.users[u.ID] = u
	r.order = append(r.order, u.ID)
	return nil
}

// RemoveUser deletes the user with the given id. When the admin leaves and others
// remain, the oldest remaining member is promoted and returned as promoted.
func (r *Room) RemoveUser(id string) (removed, promoted *User) {
	removed, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	delete(r.users, id)
	for i, uid := range r.order {
		if uid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.Admin != removed {
		return removed, nil
	}
	r.Admin = nil
	if len(r.order) > 0 {
		promoted = r.users[r.order[0]]
		promoted.IsAdmin = true
		r.Admin = promoted
	}
	return removed, promoted
}

func (r *Room) User(id string) (*User, bool) {
	u, ok := r.users[id]
	return u, ok
}

func (r *Room) IsAdmin(id string) bool {
	return r.Admin != nil && r.Admin.ID == id
}

// Users returns members in join order
func (r *Room) Users() []*User {
	res := make([]*User, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.users[id])
	}
	return res
}

func (r *Room) UserCount() int {
	return len(r.users)
}

func (r *Room) Empty() bool {
	return len(r.users) == 0
}

func (r *Room) UpdateVideoState(p VideoPatch, now time.Time) {
	r.Video.Apply(p)
	r.Video.UpdatedAt = now
}

func (r *Room) SetVideo(v VideoState, now time.Time) {
	v.UpdatedAt = now
	r.Video = v
}

func (r *Room) ClearVideo(now time.Time) {
	r.Video = VideoState{Kind: VideoEmpty, UpdatedAt: now}
}

func (r *Room) PublicInfo() PublicInfo {
	info := PublicInfo{
		ID:          r.ID,
		Name:        r.Name,
		Privacy:     r.Privacy,
		HasPassword: r.PasswordHash != "",
		MaxUsers:    r.MaxUsers,
		UserCount:   len(r.users),
		Users:       make([]User, 0, len(r.order)),
		Video:       r.Video,
		CreatedAt:   r.CreatedAt,
	}
	for _, u := range r.Users() {
		info.Users = append(info.Users, *u)
	}
	if r.Admin != nil {
		info.AdminID = r.Admin.ID
	}
	return info
}

// Broadcast sends p to every member in join order.
func (r *Room) Broadcast(p []byte) {
	r.BroadcastExcept("", p)
}

// BroadcastExcept sends p to every member but the one with the given id.
func (r *Room) BroadcastExcept(id string, p []byte) {
	for _, uid := range r.order {
		if uid == id {
			continue
		}
		if u := r.users[uid]; u.Conn != nil {
			u.Conn.Send(p)
		}
	}
}

// SendTo delivers p to a single member, if present.
func (r *Room) SendTo(id string, p []byte) {
	if u, ok := r.users[id]; ok && u.Conn != nil {
		u.Conn.Send(p)
	}
}
