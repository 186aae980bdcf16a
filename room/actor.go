package room

import (
	"context"
	"sync"

	"syncstream.pro/model"
	"syncstream.pro/pkg/errs"
)

const mailboxSize = 64

// Actor owns a Room. Every read or write of the room is a job on the actor's
// mailbox, so jobs see the room one at a time in arrival order.
type Actor struct {
	id      string
	room    *model.Room
	mailbox chan func(*model.Room)
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newActor(r *model.Room) *Actor {
	a := &Actor{
		id:      r.ID,
		room:    r,
		mailbox: make(chan func(*model.Room), mailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Actor) ID() string {
	return a.id
}

func (a *Actor) run() {
	defer close(a.done)
	for {
		// a closed actor drops whatever is still queued
		select {
		case <-a.quit:
			return
		default:
		}

		select {
		case job := <-a.mailbox:
			job(a.room)
		case <-a.quit:
			return
		}
	}
}

// Do runs fn on the actor and waits for it. fn must not call Do on the same
// actor. ErrRoomNotFound is returned when the actor stopped before fn ran.
// ctx only bounds the wait for a mailbox slot; once queued, fn always runs
// or the actor stops.
func (a *Actor) Do(ctx context.Context, fn func(*model.Room)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ran := make(chan struct{})
	job := func(r *model.Room) {
		defer close(ran)
		fn(r)
	}

	select {
	case a.mailbox <- job:
	case <-a.quit:
		return errs.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-a.done:
		select {
		case <-ran:
			return nil
		default:
			return errs.ErrRoomNotFound
		}
	}
}

// Close stops the actor. Safe to call from inside a job and more than once.
func (a *Actor) Close() {
	a.once.Do(func() { close(a.quit) })
}

// Done is closed once the actor has stopped
func (a *Actor) Done() <-chan struct{} {
	return a.done
}
