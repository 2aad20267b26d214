// Package captcha keeps short-lived email verification codes.
package captcha

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultExpiry   = 600 * time.Second
	DefaultCooldown = 60 * time.Second
	DefaultLength   = 6
)

var (
	ErrCooldown = errors.New("captcha cooldown active")
	ErrNotFound = errors.New("captcha not found")
	ErrMismatch = errors.New("captcha mismatch")
)

type entry struct {
	code    string
	issued  time.Time
	task    *Task
	removed bool
}

// Store maps a recipient address to its current code.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	sched    *Scheduler
	expiry   time.Duration
	cooldown time.Duration
	newCode  func() string
	now      func() time.Time
}

type Options struct {
	Expiry   time.Duration
	Cooldown time.Duration
	Length   int
}

func NewStore(sched *Scheduler, opts Options) (*Store, error) {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultExpiry
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Length <= 0 {
		opts.Length = DefaultLength
	}
	gen, err := nanoid.CustomASCII("0123456789", opts.Length)
	if err != nil {
		return nil, fmt.Errorf("captcha generator: %w", err)
	}
	return &Store{
		entries:  make(map[string]*entry),
		sched:    sched,
		expiry:   opts.Expiry,
		cooldown: opts.Cooldown,
		newCode:  gen,
		now:      time.Now,
	}, nil
}

func normalize(key string) string { return strings.ToLower(strings.TrimSpace(key)) }

// Request issues a fresh code for key. A prior entry younger than the cooldown
// blocks the request; an older one is replaced and its expiry canceled.
func (s *Store) Request(key string) (string, error) {
	key = normalize(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if prev, ok := s.entries[key]; ok {
		if now.Sub(prev.issued) < s.cooldown {
			return "", ErrCooldown
		}
		s.removeLocked(key, prev)
	}

	e := &entry{code: s.newCode(), issued: now}
	e.task = s.sched.After(s.expiry, func() { s.expire(key, e) })
	s.entries[key] = e
	log.Debug().Str("module", "captcha").Str("key", key).Msg("captcha issued")
	return e.code, nil
}

// Verify consumes the entry for key when code matches.
func (s *Store) Verify(key, code string) error {
	key = normalize(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return ErrNotFound
	}
	if e.code != strings.TrimSpace(code) {
		return ErrMismatch
	}
	s.removeLocked(key, e)
	log.Debug().Str("module", "captcha").Str("key", key).Msg("captcha verified")
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expire(key string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(key, e) {
		log.Debug().Str("module", "captcha").Str("key", key).Msg("captcha expired")
	}
}

// removeLocked deletes e exactly once, whichever of verify, overwrite or expiry gets there first.
func (s *Store) removeLocked(key string, e *entry) bool {
	if e.removed {
		return false
	}
	e.removed = true
	if cur, ok := s.entries[key]; ok && cur == e {
		delete(s.entries, key)
	}
	if e.task != nil {
		e.task.Cancel()
	}
	return true
}
