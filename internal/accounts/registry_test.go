package accounts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/events"
)

func TestRegisterExistingMakesFirstActive(t *testing.T) {
	r := New(nil, nil)

	id := r.RegisterExisting("a@example.com", "A", cloudclient.NewFake())

	active, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, id, active.ID)
}

func TestSwitchPublishesActiveChanged(t *testing.T) {
	bus := events.New(nil)
	sub := bus.Subscribe(events.TopicLogin)
	defer sub.Close()

	r := New(bus, nil)
	id1 := r.RegisterExisting("a@example.com", "A", cloudclient.NewFake())
	id2 := r.RegisterExisting("b@example.com", "B", cloudclient.NewFake())

	require.NoError(t, r.Switch(id2))

	active, _ := r.Active()
	assert.Equal(t, id2, active.ID)
	assert.NotEqual(t, id1, active.ID)

	select {
	case ev := <-sub.Events():
		payload := ev.Payload.(ActiveChanged)
		assert.Equal(t, id2, payload.AccountID)
	case <-time.After(time.Second):
		t.Fatal("expected ActiveChanged event")
	}
}

func TestSwitchUnknownIDFails(t *testing.T) {
	r := New(nil, nil)
	assert.ErrorIs(t, r.Switch("nope"), ErrNotFound)
}

func TestRemoveReassignsActiveWhenOthersRemain(t *testing.T) {
	r := New(nil, nil)
	id1 := r.RegisterExisting("a@example.com", "A", cloudclient.NewFake())
	id2 := r.RegisterExisting("b@example.com", "B", cloudclient.NewFake())

	require.NoError(t, r.Switch(id1))
	require.NoError(t, r.Remove(id1))

	active, ok := r.Active()
	require.True(t, ok, "an account remains, so one must be active")
	assert.Equal(t, id2, active.ID)
}

func TestRemoveLastAccountLeavesNoneActive(t *testing.T) {
	r := New(nil, nil)
	id := r.RegisterExisting("a@example.com", "A", cloudclient.NewFake())

	require.NoError(t, r.Remove(id))

	_, ok := r.Active()
	assert.False(t, ok)
}

func TestAllReturnsEveryAccount(t *testing.T) {
	r := New(nil, nil)
	r.RegisterExisting("a@example.com", "A", cloudclient.NewFake())
	r.RegisterExisting("b@example.com", "B", cloudclient.NewFake())

	assert.Len(t, r.All(), 2)
}
