package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	deliveries int
	handlers   int
	lastErr    error
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.deliveries++
	o.handlers += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got any
	_, err := b.Subscribe("test.event", func(e Event) error {
		got = e.Data()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("test.event", "tester", 123)))
	assert.Equal(t, 123, got)
}

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, err := b.Subscribe("ev", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, b.Publish(NewEvent("ev", "src", nil)))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestCancelDuringDeliverySkipsLaterHandler(t *testing.T) {
	b := New()
	var second Subscription
	calls := 0
	_, err := b.Subscribe("ev", func(Event) error {
		calls++
		return second.Cancel()
	})
	require.NoError(t, err)
	second, err = b.Subscribe("ev", func(Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("ev", "src", nil)))
	assert.Equal(t, 1, calls)
	assert.False(t, second.IsActive())

	// cancelling twice is safe
	assert.NoError(t, second.Cancel())
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "src", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestCancelledHandlerIsNotCalledAgain(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("ev", func(Event) error { calls++; return nil })
	require.NoError(t, err)
	_, err = b.Subscribe("other", func(Event) error { calls += 10; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("ev", "src", nil)))
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Publish(NewEvent("ev", "src", nil)))
	assert.Equal(t, 1, calls)
}

func TestObserverSeesDeliveries(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)
	_, _ = b.Subscribe("e", func(Event) error { return nil })
	_, _ = b.Subscribe("e", func(Event) error { return nil })

	_ = b.Publish(NewEvent("e", "s", nil))
	assert.Equal(t, 1, obs.deliveries)
	assert.Equal(t, 2, obs.handlers)
	assert.NoError(t, obs.lastErr)

	_ = b.Publish(NewEvent("nobody", "s", nil))
	assert.Equal(t, 2, obs.deliveries)
	assert.Equal(t, 2, obs.handlers)
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	_, err := New().Subscribe("e", nil)
	assert.Error(t, err)
}
