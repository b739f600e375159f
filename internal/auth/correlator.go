package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const pendingKeyPrefix = "authpending:"

// Registration and resolution errors surfaced to front-ends.
var (
	// ErrAlreadyPending means the user already has a suspended command
	// waiting for credentials. The newer command is rejected rather than
	// replacing the first, which would abandon it until its deadline and
	// produce duplicate prompts.
	ErrAlreadyPending = errors.New("auth: a pending authentication already exists for this user")

	// ErrNoPending means a credential submission arrived with nothing
	// waiting for it: expired, never registered, or already consumed.
	ErrNoPending = errors.New("auth: no pending authentication request for this user")
)

// Status of a completed pending authentication.
type Status int

const (
	StatusResolved Status = iota
	StatusExpired
)

// Resolution is handed to the suspended command's continuation exactly once.
type Resolution struct {
	Status     Status
	Credential Credential
}

// Continuation resumes a suspended command. It runs on its own goroutine,
// never on the goroutine that delivered the credential submission.
type Continuation func(Resolution)

// Markers is the slice of the shared store used to claim the per-user
// pending slot, so two process instances sharing the store cannot both
// suspend a command for the same user.
type Markers interface {
	SetIfAbsent(key string, value any, ttl time.Duration) (bool, error)
	Delete(key string)
}

type pendingAuth struct {
	id        string
	userID    string
	resume    Continuation
	createdAt time.Time
	deadline  time.Time
}

// Correlator bridges a suspended command to the later, out-of-band
// credential submission. Per user the state machine is
// NoPending → Pending → {Resumed | Expired} → NoPending, with at most one
// live pending registration at a time.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingAuth // keyed by user id

	markers  Markers
	deadline time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewCorrelator builds a correlator. deadline bounds how long a registration
// may wait for a submission.
func NewCorrelator(markers Markers, deadline time.Duration, log zerolog.Logger) *Correlator {
	return &Correlator{
		pending:  make(map[string]*pendingAuth),
		markers:  markers,
		deadline: deadline,
		now:      time.Now,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

// Register suspends a command for userID. resume is invoked exactly once:
// with StatusResolved when a valid submission arrives before the deadline,
// or with StatusExpired otherwise. Returns a correlation id for logging.
func (c *Correlator) Register(userID string, resume Continuation) (string, error) {
	now := c.now()
	p := &pendingAuth{
		id:        uuid.NewString(),
		userID:    userID,
		resume:    resume,
		createdAt: now,
		deadline:  now.Add(c.deadline),
	}

	c.mu.Lock()
	if _, exists := c.pending[userID]; exists {
		c.mu.Unlock()
		return "", ErrAlreadyPending
	}
	c.pending[userID] = p
	c.mu.Unlock()

	// Claim the cross-instance slot. Losing the claim means another
	// instance suspended first; back out the local registration.
	claimed, err := c.markers.SetIfAbsent(pendingKeyPrefix+userID, p.id, c.deadline)
	if err != nil || !claimed {
		c.mu.Lock()
		delete(c.pending, userID)
		c.mu.Unlock()
		if err != nil {
			return "", err
		}
		return "", ErrAlreadyPending
	}

	c.log.Debug().Str("user", userID).Str("request", p.id).Msg("registered pending authentication")
	return p.id, nil
}

// Resolve completes the pending authentication for userID with a submitted
// credential. The continuation runs on a fresh goroutine so the event source
// that delivered the submission is never blocked by the resumed command.
func (c *Correlator) Resolve(userID string, cred Credential) error {
	c.mu.Lock()
	p, exists := c.pending[userID]
	if exists && c.now().After(p.deadline) {
		// Expired but not yet swept; treat the submission as too late.
		delete(c.pending, userID)
		c.mu.Unlock()
		c.markers.Delete(pendingKeyPrefix + userID)
		go p.resume(Resolution{Status: StatusExpired})
		return ErrNoPending
	}
	if !exists {
		c.mu.Unlock()
		return ErrNoPending
	}
	delete(c.pending, userID)
	c.mu.Unlock()

	c.markers.Delete(pendingKeyPrefix + userID)
	c.log.Debug().Str("user", userID).Str("request", p.id).Msg("resolving pending authentication")

	go p.resume(Resolution{Status: StatusResolved, Credential: cred})
	return nil
}

// Cancel drops the pending registration for userID without resuming it.
func (c *Correlator) Cancel(userID string) {
	c.mu.Lock()
	_, exists := c.pending[userID]
	delete(c.pending, userID)
	c.mu.Unlock()
	if exists {
		c.markers.Delete(pendingKeyPrefix + userID)
	}
}

// HasPending reports whether userID currently has a live registration.
func (c *Correlator) HasPending(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, exists := c.pending[userID]
	return exists && !c.now().After(p.deadline)
}

// Run sweeps expired registrations until ctx is done. Expiry actively
// notifies the waiting continuation rather than leaving the original
// command silently hanging.
func (c *Correlator) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.expire()
		}
	}
}

func (c *Correlator) expire() {
	now := c.now()

	c.mu.Lock()
	var expired []*pendingAuth
	for userID, p := range c.pending {
		if now.After(p.deadline) {
			expired = append(expired, p)
			delete(c.pending, userID)
		}
	}
	c.mu.Unlock()

	for _, p := range expired {
		c.markers.Delete(pendingKeyPrefix + p.userID)
		c.log.Info().Str("user", p.userID).Str("request", p.id).Msg("pending authentication timed out")
		go p.resume(Resolution{Status: StatusExpired})
	}
}
