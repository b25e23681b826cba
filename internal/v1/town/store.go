package town

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/covey-town/townservice/internal/v1/logging"
	"github.com/covey-town/townservice/internal/v1/metrics"
)

// TownListing is the public view of a town returned by GetTowns. It never
// carries the update password.
type TownListing struct {
	CoveyTownID      string `json:"coveyTownID"`
	FriendlyName     string `json:"friendlyName"`
	CurrentOccupancy int    `json:"currentOccupancy"`
	MaximumOccupancy int    `json:"maximumOccupancy"`
}

// TownsStore is the process-wide registry of town controllers, keyed by town
// ID with insertion order preserved for listing. Construct one per process
// and inject it into handlers; there is no package-level singleton so tests
// stay parallelizable.
type TownsStore struct {
	mu    sync.RWMutex
	towns []*TownController
	video VideoTokenSource
}

// NewTownsStore creates a store whose controllers mint video tokens from the
// given source.
func NewTownsStore(video VideoTokenSource) *TownsStore {
	return &TownsStore{video: video}
}

// CreateTown creates a controller with a fresh town ID and update password
// and inserts it into the registry.
func (s *TownsStore) CreateTown(friendlyName string, isPubliclyListed bool) *TownController {
	controller := NewTownController(friendlyName, isPubliclyListed, s.video)

	s.mu.Lock()
	s.towns = append(s.towns, controller)
	s.mu.Unlock()

	metrics.ActiveTowns.Inc()
	logging.Info(context.Background(), "Town created",
		zap.String("town_id", controller.CoveyTownID()),
		zap.String("friendly_name", friendlyName),
		zap.Bool("publicly_listed", isPubliclyListed))
	return controller
}

// GetControllerForTown returns the controller for the town ID, or nil. The
// returned reference transfers no ownership: all mutation still goes through
// the controller's own serialization domain.
func (s *TownsStore) GetControllerForTown(coveyTownID string) *TownController {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.towns {
		if c.CoveyTownID() == coveyTownID {
			return c
		}
	}
	return nil
}

// GetTowns lists the publicly-listed towns in insertion order.
func (s *TownsStore) GetTowns() []TownListing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listings := make([]TownListing, 0, len(s.towns))
	for _, c := range s.towns {
		if !c.IsPubliclyListed() {
			continue
		}
		listings = append(listings, TownListing{
			CoveyTownID:      c.CoveyTownID(),
			FriendlyName:     c.FriendlyName(),
			CurrentOccupancy: c.Occupancy(),
			MaximumOccupancy: c.Capacity(),
		})
	}
	return listings
}

// TownCount reports how many towns are registered, public or not.
func (s *TownsStore) TownCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.towns)
}

// UpdateTown applies a password-gated update to a town's friendly name
// and/or public listing flag. Nil fields are left unchanged.
func (s *TownsStore) UpdateTown(coveyTownID, password string, friendlyName *string, isPubliclyListed *bool) bool {
	controller := s.GetControllerForTown(coveyTownID)
	if controller == nil || controller.TownUpdatePassword() != password {
		return false
	}
	controller.update(friendlyName, isPubliclyListed)
	return true
}

// DeleteTown destroys a town: the controller disconnects all players and is
// removed from the registry. Password-gated.
func (s *TownsStore) DeleteTown(coveyTownID, password string) bool {
	s.mu.Lock()
	var controller *TownController
	for i, c := range s.towns {
		if c.CoveyTownID() == coveyTownID {
			if c.TownUpdatePassword() != password {
				s.mu.Unlock()
				return false
			}
			controller = c
			s.towns = append(s.towns[:i], s.towns[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if controller == nil {
		return false
	}

	controller.DisconnectAllPlayers()
	metrics.ActiveTowns.Dec()
	logging.Info(context.Background(), "Town deleted",
		zap.String("town_id", coveyTownID))
	return true
}

// Shutdown disconnects every town. Used for graceful process termination.
func (s *TownsStore) Shutdown() {
	s.mu.Lock()
	towns := s.towns
	s.towns = nil
	s.mu.Unlock()

	for _, c := range towns {
		c.DisconnectAllPlayers()
		metrics.ActiveTowns.Dec()
	}
}
