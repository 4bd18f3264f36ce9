package profile

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/pkg/logger"
)

const (
	GuestID = "guest"

	defaultName    = "Guest"
	defaultProduct = "item"
	defaultOrder   = "#0000"
)

type Profile struct {
	UserID           string `json:"user_id"`
	Name             string `json:"name"`
	PreferredProduct string `json:"preferred_product"`
	RecentOrder      string `json:"recent_order"`
}

// Guest is the built-in default profile.
func Guest() Profile {
	return Profile{
		UserID:           GuestID,
		Name:             defaultName,
		PreferredProduct: defaultProduct,
		RecentOrder:      defaultOrder,
	}
}

// withDefaults fills empty fields from def.
func (p Profile) withDefaults(def Profile) Profile {
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.PreferredProduct == "" {
		p.PreferredProduct = def.PreferredProduct
	}
	if p.RecentOrder == "" {
		p.RecentOrder = def.RecentOrder
	}
	return p
}

// fromFields builds a profile from loosely typed attributes. Non-string
// values are ignored.
func fromFields(userID string, fields map[string]interface{}) Profile {
	p := Profile{UserID: userID}
	if s, ok := fields["name"].(string); ok {
		p.Name = s
	}
	if s, ok := fields["preferred_product"].(string); ok {
		p.PreferredProduct = s
	}
	if s, ok := fields["recent_order"].(string); ok {
		p.RecentOrder = s
	}
	return p
}

// Source looks a single user up in a backing store.
type Source interface {
	Lookup(ctx context.Context, userID string) (Profile, bool, error)
}

// Reloader is implemented by sources that cache their backing store.
type Reloader interface {
	Reload() error
}

// Store resolves profiles with a guest fallback that cannot fail.
type Store struct {
	source Source
	guest  atomic.Pointer[Profile]
}

func NewStore(source Source) *Store {
	s := &Store{source: source}
	g := Guest()
	s.guest.Store(&g)
	s.refreshGuest(context.Background())
	return s
}

// Lookup returns the profile for userID, or the guest profile when the user
// is unknown or the source fails. Missing fields take guest values.
func (s *Store) Lookup(ctx context.Context, userID string) Profile {
	guest := *s.guest.Load()

	if s.source == nil || userID == "" {
		metrics.ProfileLookups.WithLabelValues("guest").Inc()
		return guest
	}

	p, ok, err := s.source.Lookup(ctx, userID)
	if err != nil {
		logger.Warn("Profile lookup failed, using guest profile",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		metrics.ProfileLookups.WithLabelValues("error").Inc()
		return guest
	}
	if !ok {
		metrics.ProfileLookups.WithLabelValues("guest").Inc()
		return guest
	}

	metrics.ProfileLookups.WithLabelValues("found").Inc()
	return p.withDefaults(guest)
}

// Reload refreshes a caching source. Sources without a cache are a no-op.
func (s *Store) Reload(ctx context.Context) error {
	if r, ok := s.source.(Reloader); ok {
		if err := r.Reload(); err != nil {
			return err
		}
	}
	s.refreshGuest(ctx)
	return nil
}

func (s *Store) refreshGuest(ctx context.Context) {
	if s.source == nil {
		return
	}
	p, ok, err := s.source.Lookup(ctx, GuestID)
	if err != nil || !ok {
		if err != nil {
			logger.Warn("Guest profile unavailable, using built-in defaults", zap.Error(err))
		}
		g := Guest()
		s.guest.Store(&g)
		return
	}
	g := p.withDefaults(Guest())
	s.guest.Store(&g)
}
