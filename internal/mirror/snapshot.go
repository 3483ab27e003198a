// Package mirror keeps a per-connection copy of one user's cart, wishlist and
// library and pushes every change to its observers.
package mirror

import "storefront-backend/internal/models"

// Snapshot is an immutable view of the mirrored state. A new Snapshot is built
// for every change; readers never see a partially applied update. Collections
// are never nil so they encode as JSON arrays.
type Snapshot struct {
	UserID   string         `json:"userId"`
	Cart     []*models.Game `json:"cart"`
	Wishlist []string       `json:"wishlist"`
	Library  []string       `json:"library"`
	Version  uint64         `json:"version"`
}

func (s *Snapshot) IsInWishlist(gameID string) bool {
	return containsID(s.Wishlist, gameID)
}

func (s *Snapshot) IsPurchased(gameID string) bool {
	return containsID(s.Library, gameID)
}

func (s *Snapshot) IsInCart(gameID string) bool {
	for _, g := range s.Cart {
		if g.ID == gameID {
			return true
		}
	}
	return false
}

// CartTotal sums the cart prices as displayed; checkout charges catalog
// prices.
func (s *Snapshot) CartTotal() float64 {
	var total float64
	for _, g := range s.Cart {
		total += g.Price
	}
	return total
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		UserID:   s.UserID,
		Cart:     append(make([]*models.Game, 0, len(s.Cart)), s.Cart...),
		Wishlist: append(make([]string, 0, len(s.Wishlist)), s.Wishlist...),
		Library:  append(make([]string, 0, len(s.Library)), s.Library...),
		Version:  s.Version,
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
