package town

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *TownsStore {
	return NewTownsStore(&fakeTokenSource{})
}

func TestCreateTownAssignsFreshCredentials(t *testing.T) {
	store := newTestStore()

	town1 := store.CreateTown("town one", true)
	town2 := store.CreateTown("town two", true)

	assert.NotEmpty(t, town1.CoveyTownID())
	assert.NotEmpty(t, town1.TownUpdatePassword())
	assert.NotEqual(t, town1.CoveyTownID(), town2.CoveyTownID())
	assert.NotEqual(t, town1.TownUpdatePassword(), town2.TownUpdatePassword())
}

func TestGetControllerForTown(t *testing.T) {
	store := newTestStore()
	created := store.CreateTown("town", true)

	assert.Same(t, created, store.GetControllerForTown(created.CoveyTownID()))
	assert.Nil(t, store.GetControllerForTown("no-such-town"))
}

func TestGetTownsFiltersAndOrders(t *testing.T) {
	store := newTestStore()
	pub1 := store.CreateTown("first", true)
	store.CreateTown("hidden", false)
	pub2 := store.CreateTown("second", true)

	_, err := pub1.AddPlayer(context.Background(), NewPlayer("alice"))
	require.NoError(t, err)

	listings := store.GetTowns()
	require.Len(t, listings, 2)

	assert.Equal(t, pub1.CoveyTownID(), listings[0].CoveyTownID)
	assert.Equal(t, "first", listings[0].FriendlyName)
	assert.Equal(t, 1, listings[0].CurrentOccupancy)
	assert.Equal(t, DefaultCapacity, listings[0].MaximumOccupancy)

	assert.Equal(t, pub2.CoveyTownID(), listings[1].CoveyTownID)
	assert.Equal(t, 0, listings[1].CurrentOccupancy)
}

func TestUpdateTown(t *testing.T) {
	store := newTestStore()
	town := store.CreateTown("old name", false)

	newName := "new name"
	public := true

	assert.False(t, store.UpdateTown(town.CoveyTownID(), "wrong password", &newName, &public))
	assert.Equal(t, "old name", town.FriendlyName())

	assert.True(t, store.UpdateTown(town.CoveyTownID(), town.TownUpdatePassword(), &newName, &public))
	assert.Equal(t, "new name", town.FriendlyName())
	assert.True(t, town.IsPubliclyListed())

	// Nil fields leave state untouched
	assert.True(t, store.UpdateTown(town.CoveyTownID(), town.TownUpdatePassword(), nil, nil))
	assert.Equal(t, "new name", town.FriendlyName())
	assert.True(t, town.IsPubliclyListed())

	assert.False(t, store.UpdateTown("no-such-town", "whatever", &newName, nil))
}

func TestDeleteTown(t *testing.T) {
	store := newTestStore()
	town := store.CreateTown("doomed", true)
	listener := &recordingTownListener{}
	town.AddTownListener(listener)

	assert.False(t, store.DeleteTown(town.CoveyTownID(), "wrong password"))
	assert.NotNil(t, store.GetControllerForTown(town.CoveyTownID()))

	assert.True(t, store.DeleteTown(town.CoveyTownID(), town.TownUpdatePassword()))
	assert.Nil(t, store.GetControllerForTown(town.CoveyTownID()))
	assert.Equal(t, 1, listener.count("townDestroyed"))

	assert.False(t, store.DeleteTown(town.CoveyTownID(), town.TownUpdatePassword()))
}

func TestStoreShutdownDisconnectsEveryTown(t *testing.T) {
	store := newTestStore()
	town1 := store.CreateTown("one", true)
	town2 := store.CreateTown("two", false)

	l1 := &recordingTownListener{}
	l2 := &recordingTownListener{}
	town1.AddTownListener(l1)
	town2.AddTownListener(l2)

	store.Shutdown()

	assert.Equal(t, 1, l1.count("townDestroyed"))
	assert.Equal(t, 1, l2.count("townDestroyed"))
	assert.Empty(t, store.GetTowns())
}
