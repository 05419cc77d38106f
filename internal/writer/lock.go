package writer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"pmt/internal/services"
	"pmt/internal/textutil"
)

const lockRetryDelay = 20 * time.Millisecond

// Locker serializes get-or-create sequences per target identifier. Callers in
// the same process share an in-memory gate; callers in other processes are
// excluded by a file lock under dir. An empty dir disables the file lock.
type Locker struct {
	dir     string
	timeout time.Duration

	mu    sync.Mutex
	gates map[string]*gate
}

type gate struct {
	ch   chan struct{}
	refs int
}

// NewLocker returns a Locker writing lock files under dir. timeout bounds the
// wait for one identifier; zero waits until ctx is done.
func NewLocker(dir string, timeout time.Duration) *Locker {
	return &Locker{dir: dir, timeout: timeout, gates: map[string]*gate{}}
}

// With runs fn while holding the lock for key.
func (l *Locker) With(ctx context.Context, key string, fn func() error) error {
	if l == nil {
		return fn()
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	g := l.acquireGate(key)
	defer l.releaseGate(key, g)
	select {
	case g.ch <- struct{}{}:
	case <-ctx.Done():
		return lockError(key, ctx.Err())
	}
	defer func() { <-g.ch }()

	if l.dir == "" {
		return fn()
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "lock", key, "create lock directory", err)
	}
	fl := flock.New(l.path(key))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return lockError(key, err)
	}
	if !ok {
		return lockError(key, errors.New("lock held by another writer"))
	}
	defer func() { _ = fl.Unlock() }()
	return fn()
}

func (l *Locker) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := fmt.Sprintf("%s-%s.lock", textutil.SanitizeToken(key), hex.EncodeToString(sum[:6]))
	return filepath.Join(l.dir, name)
}

func (l *Locker) acquireGate(key string) *gate {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[key]
	if !ok {
		g = &gate{ch: make(chan struct{}, 1)}
		l.gates[key] = g
	}
	g.refs++
	return g
}

func (l *Locker) releaseGate(key string, g *gate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g.refs--
	if g.refs == 0 {
		delete(l.gates, key)
	}
}

func lockError(key string, err error) error {
	return services.Wrap(services.ErrTargetUnavailable, "lock", key, "identifier is busy", err)
}

// LockKey joins identifier parts into a Locker key.
func LockKey(parts ...string) string {
	return strings.Join(parts, "/")
}
