package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"syncstream.pro/model"
	"syncstream.pro/pkg/errs"
	"syncstream.pro/pkg/security"
	"syncstream.pro/pkg/utils"
)

const idAttempts = 16

type Config struct {
	MaxRooms        int
	DefaultMaxUsers int
	MaxUsersLimit   int
}

type CreateParams struct {
	Name     string
	Password string
	Privacy  model.Privacy
	MaxUsers int
}

// JoinParams describes a connection asking to enter a room. A private room
// accepts either the password or a room token issued for the same room.
type JoinParams struct {
	ConnID   string
	Name     string
	Password string
	Token    string
	Conn     model.Sink
}

// Manager is the room registry. It owns the actors and the credentials
// needed to let users in.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]*Actor
	config Config
	hasher *security.Hasher
	tokens *security.Tokens
	now    func() time.Time
}

func NewManager(c Config, hasher *security.Hasher, tokens *security.Tokens) *Manager {
	if c.MaxRooms < 1 {
		c.MaxRooms = 1
	}
	if c.MaxUsersLimit < 1 {
		c.MaxUsersLimit = 50
	}
	if c.DefaultMaxUsers < 1 || c.DefaultMaxUsers > c.MaxUsersLimit {
		c.DefaultMaxUsers = c.MaxUsersLimit
	}
	return &Manager{
		rooms:  make(map[string]*Actor),
		config: c,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
	}
}

// Create registers a new empty room. It fails with ErrRoomExists when the
// registry is at capacity; a live room is never replaced.
func (m *Manager) Create(p CreateParams) (model.PublicInfo, error) {
	switch {
	case p.MaxUsers <= 0:
		p.MaxUsers = m.config.DefaultMaxUsers
	case p.MaxUsers > m.config.MaxUsersLimit:
		p.MaxUsers = m.config.MaxUsersLimit
	}
	if p.Password != "" {
		p.Privacy = model.Private
	} else if p.Privacy == "" {
		p.Privacy = model.Public
	}

	var hash string
	if p.Password != "" {
		var err error
		if hash, err = m.hasher.Hash(p.Password); err != nil {
			return model.PublicInfo{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rooms) >= m.config.MaxRooms {
		return model.PublicInfo{}, errs.ErrRoomExists
	}

	var id string
	for i := 0; i < idAttempts; i++ {
		candidate := utils.RandRoomID()
		if _, exists := m.rooms[candidate]; !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		return model.PublicInfo{}, errs.ErrRoomExists.Withf("unable to generate a unique room id")
	}

	r := model.NewRoom(id, p.Name, hash, p.Privacy, p.MaxUsers, m.now())
	if !r.Valid() {
		return model.PublicInfo{}, errs.ErrInvalidPayload.Withf("invalid room settings")
	}
	r.Name = security.Sanitize(r.Name)

	m.rooms[id] = newActor(r)
	log.Infof("room %s created (%s, max %d users)", id, r.Privacy, r.MaxUsers)
	return r.PublicInfo(), nil
}

// Lookup returns the actor of a live room
func (m *Manager) Lookup(roomID string) (*Actor, error) {
	m.mu.RLock()
	a, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.ErrRoomNotFound
	}
	return a, nil
}

// Close removes the room from the registry and stops its actor. Jobs still
// queued on the actor are dropped.
func (m *Manager) Close(roomID string) {
	m.mu.Lock()
	a, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mu.Unlock()

	if ok {
		a.Close()
		log.Infof("room %s closed", roomID)
	}
}

// CloseAll stops every room, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Admit checks the credentials in p against r and adds the user. It must run
// on r's actor. Failed attempts leave r untouched.
func (m *Manager) Admit(r *model.Room, p JoinParams) (*model.User, error) {
	if r.Privacy == model.Private {
		if err := m.authorize(r, p); err != nil {
			return nil, err
		}
	}

	u := &model.User{
		ID:       p.ConnID,
		Name:     p.Name,
		JoinedAt: m.now(),
		Conn:     p.Conn,
	}
	if err := r.AddUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (m *Manager) authorize(r *model.Room, p JoinParams) error {
	if p.Token != "" {
		claims, err := m.tokens.Verify(p.Token)
		if err != nil {
			return err
		}
		if claims.RoomID != r.ID {
			return errs.ErrInvalidToken
		}
		return nil
	}
	if !m.hasher.Verify(r.PasswordHash, p.Password) {
		return errs.ErrWrongPassword
	}
	return nil
}

// Leave removes a user from r on its actor. An emptied room is closed before
// the job returns, so no later job can add users to it.
func (m *Manager) Leave(r *model.Room, connID string) (removed, promoted *model.User) {
	removed, promoted = r.RemoveUser(connID)
	if removed != nil && r.Empty() {
		m.Close(r.ID)
	}
	return removed, promoted
}

func (m *Manager) AddUser(ctx context.Context, roomID string, p JoinParams) (*model.User, error) {
	a, err := m.Lookup(roomID)
	if err != nil {
		return nil, err
	}

	var (
		u        *model.User
		admitErr error
	)
	if err = a.Do(ctx, func(r *model.Room) {
		u, admitErr = m.Admit(r, p)
	}); err != nil {
		return nil, err
	}
	return u, admitErr
}

func (m *Manager) RemoveUser(ctx context.Context, roomID, connID string) (removed, promoted *model.User, err error) {
	a, err := m.Lookup(roomID)
	if err != nil {
		return nil, nil, err
	}
	err = a.Do(ctx, func(r *model.Room) {
		removed, promoted = m.Leave(r, connID)
	})
	return removed, promoted, err
}

// UpdateVideoState merges p into the room's video state. A missing room is a no-op.
func (m *Manager) UpdateVideoState(ctx context.Context, roomID string, p model.VideoPatch) error {
	a, err := m.Lookup(roomID)
	if err != nil {
		return nil
	}
	err = a.Do(ctx, func(r *model.Room) {
		r.UpdateVideoState(p, m.now())
	})
	if errors.Is(err, errs.ErrRoomNotFound) {
		return nil
	}
	return err
}

func (m *Manager) PublicInfo(ctx context.Context, roomID string) (model.PublicInfo, error) {
	a, err := m.Lookup(roomID)
	if err != nil {
		return model.PublicInfo{}, err
	}

	var info model.PublicInfo
	if err = a.Do(ctx, func(r *model.Room) {
		info = r.PublicInfo()
	}); err != nil {
		return model.PublicInfo{}, err
	}
	return info, nil
}

// LocalFile returns the host path of the room's local video
func (m *Manager) LocalFile(ctx context.Context, roomID string) (string, error) {
	a, err := m.Lookup(roomID)
	if err != nil {
		return "", err
	}

	var path string
	if err = a.Do(ctx, func(r *model.Room) {
		if r.Video.Kind == model.VideoLocalFile {
			path = r.Video.SourcePath
		}
	}); err != nil {
		return "", err
	}
	if path == "" {
		return "", errs.ErrNoLocalFile
	}
	return path, nil
}

// Token issues a room token for u
func (m *Manager) Token(roomID string, u *model.User) (string, error) {
	return m.tokens.Sign(roomID, u.ID, u.IsAdmin)
}
