package devserver

import (
	"sync"
	"time"
)

// LoginLimiter caps login attempts per username within a sliding window.
type LoginLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewLoginLimiter(limit int, interval time.Duration) *LoginLimiter {
	return &LoginLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *LoginLimiter) Allow(username string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	for name, attempts := range rl.history {
		fresh := attempts[:0]
		for _, t := range attempts {
			if t.After(windowStart) {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) == 0 {
			delete(rl.history, name)
			continue
		}
		rl.history[name] = fresh
	}

	fresh := rl.history[username]
	if len(fresh) >= rl.limit {
		return false
	}
	rl.history[username] = append(fresh, now)
	return true
}

// Reset forgets a username's attempts, after a successful login.
func (rl *LoginLimiter) Reset(username string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, username)
	rl.mu.Unlock()
}
