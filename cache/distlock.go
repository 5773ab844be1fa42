package cache

import (
	"log"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Locker serializes background jobs (the poll expiry sweep) across server
// processes. Without redis it degrades to running the action unguarded,
// which is safe in the single-process deployment.
type Locker struct {
	rs *redsync.Redsync
}

// NewLocker builds a redsync-backed locker; a nil client yields a locker
// that runs actions without coordination.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return &Locker{}
	}
	return &Locker{rs: redsync.New(goredis.NewPool(client))}
}

// WithLock runs action while holding the named lock. Failing to acquire
// the lock means another process holds it; the action is skipped.
func (l *Locker) WithLock(name string, expiry time.Duration, action func() error) error {
	if l == nil || l.rs == nil {
		return action()
	}

	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(expiry),
		redsync.WithTries(1),
	)
	if err := mutex.Lock(); err != nil {
		log.Printf("cache: lock %q held elsewhere, skipping: %v", name, err)
		return nil
	}
	defer func() {
		if _, err := mutex.Unlock(); err != nil {
			log.Printf("cache: failed to release lock %q: %v", name, err)
		}
	}()

	return action()
}
