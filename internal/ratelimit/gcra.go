// Package ratelimit implements per-user admission control with the Generic
// Cell Rate Algorithm. GCRA keeps a single scalar per key, the theoretical
// arrival time (TAT), which makes it a natural fit for the shared store: one
// atomic read-modify-write per decision, no timestamp lists.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"
)

const keyPrefix = "rate:"

// Store is the slice of the shared store the limiter needs: a single atomic
// read-modify-write. The update function must execute as one unit or two
// concurrent checks could both observe the same TAT and double-spend the
// budget.
type Store interface {
	Update(key string, ttl time.Duration, fn func(cur json.RawMessage, exists bool) (next any, write bool)) error
}

// Limiter is a GCRA admission gate keyed by user id.
type Limiter struct {
	store Store

	// leakInterval is the steady minimum spacing between admitted
	// commands; burst many may exceed it before the gate closes.
	leakInterval time.Duration
	burstOffset  time.Duration

	now func() time.Time
}

// New builds a limiter. leakInterval is the minimum spacing between admitted
// events; burst is the capacity in units of leakInterval.
func New(store Store, leakInterval time.Duration, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		store:        store,
		leakInterval: leakInterval,
		burstOffset:  leakInterval * time.Duration(burst),
		now:          time.Now,
	}
}

// Allow reports whether a command from userID may proceed. On denial,
// retryAfter is how long the user must wait before an attempt can succeed.
// Store failures deny: admission control fails closed so an unavailable
// store cannot turn into an unlimited bot.
func (l *Limiter) Allow(userID string) (allowed bool, retryAfter time.Duration, err error) {
	now := l.now()

	err = l.store.Update(keyPrefix+userID, l.burstOffset+l.leakInterval,
		func(cur json.RawMessage, exists bool) (any, bool) {
			tat := now
			if exists {
				var stored string
				if json.Unmarshal(cur, &stored) == nil {
					if t, perr := time.Parse(time.RFC3339Nano, stored); perr == nil && t.After(now) {
						tat = t
					}
				}
			}

			newTAT := tat.Add(l.leakInterval)
			if limit := now.Add(l.burstOffset); newTAT.After(limit) {
				// Denied: leave the stored TAT untouched.
				retryAfter = newTAT.Sub(limit)
				return nil, false
			}

			allowed = true
			return newTAT.Format(time.RFC3339Nano), true
		})
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: %w", err)
	}
	return allowed, retryAfter, nil
}
