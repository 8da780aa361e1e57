package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrLocked = errors.New("migration lock is held")

// Lock serializes schema-changing runs that share it. It is an ordinary
// value: callers that must exclude each other pass the same *Lock.
type Lock struct {
	mu         sync.Mutex
	owner      string
	acquiredAt time.Time
}

func NewLock() *Lock {
	return &Lock{}
}

// TryAcquire takes the lock without waiting and returns the owner token to
// hand back to Release.
func (l *Lock) TryAcquire() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner != "" {
		return "", fmt.Errorf("%w by %s since %s", ErrLocked, l.owner, l.acquiredAt.Format(time.RFC3339))
	}
	l.owner = uuid.NewString()
	l.acquiredAt = time.Now()
	return l.owner, nil
}

// Release frees the lock if owner still holds it.
func (l *Lock) Release(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner == owner {
		l.owner = ""
		l.acquiredAt = time.Time{}
	}
}

