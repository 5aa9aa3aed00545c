package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func TestProbeRecordsStatus(t *testing.T) {
	p := &fakePinger{}
	s := New(p, time.Minute, time.Second)
	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	assert.False(t, s.Status().Healthy)
	assert.True(t, s.Status().CheckedAt.IsZero())

	s.check()
	st := s.Status()
	assert.True(t, st.Healthy)
	assert.Equal(t, fixed, st.CheckedAt)
	assert.Empty(t, st.Error)

	p.err = errors.New("connection refused")
	s.check()
	st = s.Status()
	assert.False(t, st.Healthy)
	assert.Equal(t, "connection refused", st.Error)
}

func TestStartRunsFirstProbe(t *testing.T) {
	s := New(&fakePinger{}, time.Hour, time.Second)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return s.Status().Healthy
	}, 2*time.Second, 10*time.Millisecond)
}
