// Package episodes records the reset-to-done cycles of environment sessions
// and persists them in a Store.
package episodes

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidEpisode is returned by Store.Save for an episode without an ID or
// environment name.
var ErrInvalidEpisode = errors.New("invalid episode")

// Episode summarises one episode.
type Episode struct {
	ID          string  `json:"id"`
	Env         string  `json:"env"`
	Instance    string  `json:"instance,omitempty"`
	Worker      int     `json:"worker"`
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"total_reward"`

	// Completed is set when the server reported done. Episodes cut short by
	// a reset or Flush are saved with Completed false.
	Completed bool       `json:"completed"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Validate reports whether e can be stored.
func (e *Episode) Validate() error {
	switch {
	case e == nil:
		return ErrInvalidEpisode
	case e.ID == "":
		return errors.Join(ErrInvalidEpisode, errors.New("missing id"))
	case e.Env == "":
		return errors.Join(ErrInvalidEpisode, errors.New("missing env"))
	}
	return nil
}

// Duration returns EndedAt - StartedAt, or zero for an open episode.
func (e *Episode) Duration() time.Duration {
	if e.EndedAt == nil {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}

// Clone returns a deep copy of e.
func (e *Episode) Clone() *Episode {
	if e == nil {
		return nil
	}
	c := *e
	if e.EndedAt != nil {
		t := *e.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// Store persists episodes.
type Store interface {
	// Save inserts or replaces the episode with the same ID.
	Save(ctx context.Context, e *Episode) error

	// Get returns the episode with the given ID, or nil (and no error) when
	// it does not exist.
	Get(ctx context.Context, id string) (*Episode, error)

	// List returns up to limit episodes of env, most recently started first.
	// An empty env lists every environment; a limit <= 0 means no limit.
	List(ctx context.Context, env string, limit int) ([]*Episode, error)

	// Delete removes the episode. Deleting a missing episode is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}
