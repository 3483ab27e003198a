package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

// LibraryReader lists owned game ids.
type LibraryReader interface {
	ListEntitlements(ctx context.Context, userID string) ([]string, error)
}

// WishlistWriter reads and writes single wishlist documents.
type WishlistWriter interface {
	Add(ctx context.Context, userID, gameID string) error
	Remove(ctx context.Context, userID, gameID string) error
	List(ctx context.Context, userID string) ([]*models.WishlistEntry, error)
}

type Observer func(*Snapshot)

type Mirror struct {
	userID   string
	library  LibraryReader
	wishlist WishlistWriter
	logger   *slog.Logger

	// notifyMu serialises updates with their notification so observers see
	// versions in order.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	snap      *Snapshot
	observers map[int]Observer
	nextID    int
}

func New(userID string, library LibraryReader, wishlist WishlistWriter, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		userID:    userID,
		library:   library,
		wishlist:  wishlist,
		logger:    logger,
		snap:      &Snapshot{UserID: userID, Cart: []*models.Game{}, Wishlist: []string{}, Library: []string{}},
		observers: make(map[int]Observer),
	}
}

func (m *Mirror) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe registers fn for every future snapshot. The returned func removes
// it. Observers run synchronously in version order and must not mutate the
// mirror.
func (m *Mirror) Subscribe(fn Observer) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Refresh reloads the server-held collections. The cart is kept, minus any
// game that is now owned.
func (m *Mirror) Refresh(ctx context.Context) error {
	owned, err := m.library.ListEntitlements(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	entries, err := m.wishlist.List(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("failed to load wishlist: %w", err)
	}

	wished := make([]string, 0, len(entries))
	for _, e := range entries {
		wished = append(wished, e.GameID)
	}

	m.update(func(s *Snapshot) bool {
		s.Library = append([]string{}, owned...)
		s.Wishlist = wished
		cart := s.Cart[:0]
		for _, g := range s.Cart {
			if !containsID(s.Library, g.ID) {
				cart = append(cart, g)
			}
		}
		s.Cart = cart
		return true
	})
	return nil
}

// ToggleWishlist flips the wishlist membership of a game based on the current
// snapshot and reports the new membership.
func (m *Mirror) ToggleWishlist(ctx context.Context, gameID string) (bool, error) {
	if gameID == "" {
		return false, apierrors.NewValidationError("gameId", "is required")
	}

	inWishlist := m.Snapshot().IsInWishlist(gameID)
	if inWishlist {
		if err := m.wishlist.Remove(ctx, m.userID, gameID); err != nil {
			return true, err
		}
	} else {
		if err := m.wishlist.Add(ctx, m.userID, gameID); err != nil {
			return false, err
		}
	}

	m.update(func(s *Snapshot) bool {
		if inWishlist {
			s.Wishlist = removeID(s.Wishlist, gameID)
		} else if !containsID(s.Wishlist, gameID) {
			s.Wishlist = append(s.Wishlist, gameID)
		}
		return true
	})
	return !inWishlist, nil
}

// AddToCart puts a game in the local cart. Owned games are refused and adding
// a game twice is a no-op.
func (m *Mirror) AddToCart(game *models.Game) error {
	if game == nil || game.ID == "" {
		return apierrors.NewValidationError("game", "id is required")
	}
	if m.Snapshot().IsPurchased(game.ID) {
		return apierrors.ErrConflict.WithMessage("Game already in library")
	}

	item := *game
	m.update(func(s *Snapshot) bool {
		if s.IsInCart(item.ID) || s.IsPurchased(item.ID) {
			return false
		}
		s.Cart = append(s.Cart, &item)
		return true
	})
	return nil
}

func (m *Mirror) RemoveFromCart(gameID string) {
	m.update(func(s *Snapshot) bool {
		if !s.IsInCart(gameID) {
			return false
		}
		cart := s.Cart[:0]
		for _, g := range s.Cart {
			if g.ID != gameID {
				cart = append(cart, g)
			}
		}
		s.Cart = cart
		return true
	})
}

func (m *Mirror) ClearCart() {
	m.update(func(s *Snapshot) bool {
		if len(s.Cart) == 0 {
			return false
		}
		s.Cart = []*models.Game{}
		return true
	})
}

// Apply reacts to a server-side change for this user.
func (m *Mirror) Apply(ctx context.Context, event *models.UserEvent) error {
	if event == nil || event.UserID != m.userID {
		return nil
	}
	switch event.Type {
	case models.EventPurchaseCompleted:
		m.ClearCart()
		return m.Refresh(ctx)
	case models.EventLibraryChanged, models.EventWishlistChanged:
		return m.Refresh(ctx)
	}
	return nil
}

// Run applies events until ctx ends or the channel closes.
func (m *Mirror) Run(ctx context.Context, events <-chan *models.UserEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := m.Apply(ctx, event); err != nil {
				m.logger.WarnContext(ctx, "failed to apply user event",
					slog.String("user_id", m.userID),
					slog.String("type", string(event.Type)),
					slog.Any("error", err),
				)
			}
		}
	}
}

// update builds the next snapshot from a copy of the current one and
// notifies observers before the next update can start. Snapshot readers only
// wait on mu. mutate returns false to skip the change.
func (m *Mirror) update(mutate func(*Snapshot) bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	next := m.snap.clone()
	if !mutate(next) {
		m.mu.Unlock()
		return
	}
	next.Version = m.snap.Version + 1
	m.snap = next

	observers := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
}
