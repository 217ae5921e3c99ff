// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry provides the reference badge ledger: a mapping from
// token id to owner and validity, with metadata and enumeration queries.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/badge"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/math/set"
)

var _ badge.Registry = (*Ledger)(nil)

// LocatorFunc produces the off-system content locator for a new badge.
type LocatorFunc func(tokenID badge.TokenID, owner ids.ShortID) string

// Store persists ledger mutations. The ledger replays LoadAll at
// construction time and writes through on every mutation.
type Store interface {
	Append(b badge.Badge) error
	MarkInvalid(tokenID badge.TokenID, at time.Time) error
	LoadAll() ([]badge.Badge, error)
}

// Ledger is an in-memory badge ledger guarded by a single lock. Badges are
// never deleted; invalidation only flips the validity flag.
type Ledger struct {
	mu      sync.RWMutex
	nextID  badge.TokenID
	badges  map[badge.TokenID]*badge.Badge
	byOwner map[ids.ShortID][]badge.TokenID

	store   Store
	locator LocatorFunc
	log     log.Logger
	events  *badge.AcceptorGroup
	clock   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(l *Ledger) {
		l.log = logger
	}
}

// WithStore sets the persistence backend.
func WithStore(store Store) Option {
	return func(l *Ledger) {
		l.store = store
	}
}

// WithLocator sets the content locator function for newly issued badges.
func WithLocator(locator LocatorFunc) Option {
	return func(l *Ledger) {
		l.locator = locator
	}
}

// WithAcceptorGroup sets the group receiving issuance and invalidation events.
func WithAcceptorGroup(g *badge.AcceptorGroup) Option {
	return func(l *Ledger) {
		l.events = g
	}
}

// New creates a ledger, replaying the store's contents when one is
// configured.
func New(opts ...Option) (*Ledger, error) {
	l := &Ledger{
		badges:  make(map[badge.TokenID]*badge.Badge),
		byOwner: make(map[ids.ShortID][]badge.TokenID),
		log:     log.NoLog{},
		events:  badge.NewAcceptorGroup(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.store != nil {
		loaded, err := l.store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to load badges from store: %w", err)
		}
		for _, b := range loaded {
			b := b
			l.badges[b.ID] = &b
			l.byOwner[b.Owner] = append(l.byOwner[b.Owner], b.ID)
			if b.ID > l.nextID {
				l.nextID = b.ID
			}
		}
		l.log.Info("badge ledger restored",
			log.Int("badges", len(loaded)),
		)
	}

	return l, nil
}

// Issue creates a new badge owned by owner, valid by default. Repeated
// calls for the same owner produce distinct tokens.
func (l *Ledger) Issue(ctx context.Context, owner ids.ShortID) (badge.TokenID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tokenID := l.nextID + 1
	b := badge.Badge{
		ID:       tokenID,
		Owner:    owner,
		Valid:    true,
		IssuedAt: l.clock(),
	}
	if l.locator != nil {
		b.URI = l.locator(tokenID, owner)
	}

	if l.store != nil {
		if err := l.store.Append(b); err != nil {
			return 0, fmt.Errorf("failed to persist badge %d: %w", tokenID, err)
		}
	}

	l.nextID = tokenID
	l.badges[tokenID] = &b
	l.byOwner[owner] = append(l.byOwner[owner], tokenID)

	l.log.Info("badge issued",
		log.Uint64("tokenID", uint64(tokenID)),
		log.Stringer("owner", owner),
	)
	l.emit(ctx, badge.BadgeIssuedEvent{Token: tokenID, Owner: owner})
	return tokenID, nil
}

// Invalidate marks an existing badge invalid. Fails with ErrUnknownToken
// for an id that was never issued and ErrAlreadyInvalid for a repeat.
func (l *Ledger) Invalidate(ctx context.Context, tokenID badge.TokenID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.badges[tokenID]
	if !ok {
		return fmt.Errorf("%w: %d", badge.ErrUnknownToken, tokenID)
	}
	if !b.Valid {
		return fmt.Errorf("%w: %d", badge.ErrAlreadyInvalid, tokenID)
	}

	now := l.clock()
	if l.store != nil {
		if err := l.store.MarkInvalid(tokenID, now); err != nil {
			return fmt.Errorf("failed to persist invalidation of badge %d: %w", tokenID, err)
		}
	}

	b.Valid = false
	b.InvalidatedAt = now

	l.log.Info("badge invalidated",
		log.Uint64("tokenID", uint64(tokenID)),
		log.Stringer("owner", b.Owner),
	)
	l.emit(ctx, badge.BadgeInvalidatedEvent{Token: tokenID, Owner: b.Owner})
	return nil
}

// Badge returns the record for the given token id.
func (l *Ledger) Badge(tokenID badge.TokenID) (badge.Badge, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.badges[tokenID]
	if !ok {
		return badge.Badge{}, fmt.Errorf("%w: %d", badge.ErrUnknownToken, tokenID)
	}
	return *b, nil
}

// OwnerOf returns the owner of the given token id.
func (l *Ledger) OwnerOf(tokenID badge.TokenID) (ids.ShortID, error) {
	b, err := l.Badge(tokenID)
	if err != nil {
		return ids.ShortEmpty, err
	}
	return b.Owner, nil
}

// IsValid returns whether the badge is currently valid.
func (l *Ledger) IsValid(tokenID badge.TokenID) (bool, error) {
	b, err := l.Badge(tokenID)
	if err != nil {
		return false, err
	}
	return b.Valid, nil
}

// TokenURI returns the badge's off-system content locator.
func (l *Ledger) TokenURI(tokenID badge.TokenID) (string, error) {
	b, err := l.Badge(tokenID)
	if err != nil {
		return "", err
	}
	return b.URI, nil
}

// BadgesOf returns the owner's token ids in issuance order.
func (l *Ledger) BadgesOf(owner ids.ShortID) []badge.TokenID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tokens := make([]badge.TokenID, len(l.byOwner[owner]))
	copy(tokens, l.byOwner[owner])
	return tokens
}

// TotalIssued returns the number of badges ever issued, valid or not.
func (l *Ledger) TotalIssued() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.badges)
}

// Capabilities declares the ledger's feature set.
func (l *Ledger) Capabilities() set.Set[badge.Capability] {
	return set.Of(badge.CapRegistry, badge.CapMetadata, badge.CapEnumeration)
}

func (l *Ledger) emit(ctx context.Context, e badge.Event) {
	if err := l.events.Accept(ctx, e); err != nil {
		l.log.Warn("event delivery failed",
			log.String("kind", e.Kind()),
			log.Err(err),
		)
	}
}
