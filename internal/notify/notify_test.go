package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShowExpireDismiss(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(func() time.Time { return now })

	a := s.Info("saved")
	b := s.Show(Warning, "slow network", 10*time.Second)
	c := s.Error(errors.New("boom"))
	require.Equal(t, Danger, c.Level)
	require.Equal(t, now.Add(DefaultDuration), a.Expires)
	require.Len(t, s.Active(), 3)

	require.True(t, s.Dismiss(c.ID))
	require.False(t, s.Dismiss(c.ID))

	now = now.Add(DefaultDuration)
	act := s.Active()
	require.Len(t, act, 1)
	require.Equal(t, b.ID, act[0].ID)
}

func TestSubscribe(t *testing.T) {
	s := New(nil)
	ch, cancel := s.Subscribe(1)

	s.Success("one")
	s.Success("dropped, buffer full")
	n := <-ch
	require.Equal(t, "one", n.Message)
	require.Equal(t, "success", n.Level.String())

	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
	s.Info("after cancel") // must not panic
}
