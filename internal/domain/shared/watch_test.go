package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_SubscribeYieldsCurrent(t *testing.T) {
	v := NewValue(1)
	ch, cancel := v.Subscribe()
	defer cancel()

	assert.Equal(t, 1, <-ch)
}

func TestValue_SlowSubscriberSeesLatest(t *testing.T) {
	v := NewValue("a")
	ch, cancel := v.Subscribe()
	defer cancel()

	v.Set("b")
	v.Set("c")

	assert.Equal(t, "c", <-ch)
	assert.Equal(t, "c", v.Get())
}

func TestValue_CancelClosesChannel(t *testing.T) {
	v := NewValue(0)
	ch, cancel := v.Subscribe()
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)

	// publishing after cancel must not panic
	v.Set(5)
	assert.Equal(t, 5, v.Get())
}
