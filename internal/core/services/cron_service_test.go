package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCronServiceEvery(t *testing.T) {
	s := NewCronService(nil)
	require.Error(t, s.Every(0, "broken", func() {}))

	var runs atomic.Int32
	require.NoError(t, s.Every(time.Second, "sweep", func() { runs.Add(1) }))
	require.Equal(t, 1, s.Jobs())

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}
