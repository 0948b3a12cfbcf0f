package sessionrepofake

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/session"
)

var _ session.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps the record in memory. The *Err fields make the matching call fail.
type FakeSessionRepo struct {
	lock    sync.RWMutex
	record  *session.Session
	saves   int
	deletes int

	LoadErr   error
	SaveErr   error
	DeleteErr error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{}
}

// NewFakeSessionRepoWith returns a repo that already holds s
func NewFakeSessionRepoWith(s session.Session) *FakeSessionRepo {
	return &FakeSessionRepo{record: &s}
}

func (r *FakeSessionRepo) Load(_ context.Context) (*session.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	if r.record == nil {
		return nil, apperrors.ErrNotFound
	}
	copied := *r.record
	return &copied, nil
}

func (r *FakeSessionRepo) Save(_ context.Context, s *session.Session) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.SaveErr != nil {
		return r.SaveErr
	}
	copied := *s
	copied.Epoch = 0
	r.record = &copied
	r.saves++
	return nil
}

func (r *FakeSessionRepo) Delete(_ context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.record = nil
	r.deletes++
	return nil
}

// Record returns the persisted session, nil when none is stored
func (r *FakeSessionRepo) Record() *session.Session {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.record == nil {
		return nil
	}
	copied := *r.record
	return &copied
}

func (r *FakeSessionRepo) Saves() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.saves
}

func (r *FakeSessionRepo) Deletes() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.deletes
}
