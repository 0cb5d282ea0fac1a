package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conecta-ies/solicitation-service/internal/clock"
)

type fakeSequencer struct {
	counters map[string]int64
	failIncr bool
}

func newFakeSequencer() *fakeSequencer {
	return &fakeSequencer{counters: make(map[string]int64)}
}

func (f *fakeSequencer) Incr(_ context.Context, key string) (int64, error) {
	if f.failIncr {
		return 0, errors.New("sequencer down")
	}
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeSequencer) SetMax(_ context.Context, key string, value int64) error {
	if value > f.counters[key] {
		f.counters[key] = value
	}
	return nil
}

type fakeYearCounter struct {
	counts map[int]int64
	err    error
}

func (f *fakeYearCounter) CountCreatedInYear(_ context.Context, year int) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[year], nil
}

func fixedClock(year int) clock.Clock {
	return clock.Fixed(time.Date(year, time.June, 15, 12, 0, 0, 0, time.UTC))
}

func TestNext_FirstOfYear(t *testing.T) {
	gen := NewGenerator(newFakeSequencer(), &fakeYearCounter{counts: map[int]int64{}}, fixedClock(2025), zap.NewNop())

	protocol, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2025-0001", protocol)
}

func TestNext_SequencesWithinYear(t *testing.T) {
	gen := NewGenerator(newFakeSequencer(), &fakeYearCounter{counts: map[int]int64{}}, fixedClock(2025), zap.NewNop())

	for i := 1; i <= 12; i++ {
		protocol, err := gen.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "SOL-2025-"+pad(i), protocol)
	}
}

func TestNext_ZeroPadsToFourDigits(t *testing.T) {
	seq := newFakeSequencer()
	seq.counters["solicitations:protocol:2025"] = 998
	gen := NewGenerator(seq, &fakeYearCounter{counts: map[int]int64{}}, fixedClock(2025), zap.NewNop())

	protocol, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2025-0999", protocol)

	protocol, err = gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2025-1000", protocol)
}

func TestNext_YearRolloverRestartsSequence(t *testing.T) {
	seq := newFakeSequencer()
	counter := &fakeYearCounter{counts: map[int]int64{}}

	gen := NewGenerator(seq, counter, fixedClock(2025), zap.NewNop())
	protocol, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2025-0001", protocol)

	gen = NewGenerator(seq, counter, fixedClock(2026), zap.NewNop())
	protocol, err = gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-0001", protocol)
}

func TestNext_ReseedsLostCounterFromStore(t *testing.T) {
	// Counter key is gone but 41 solicitations already exist this year.
	seq := newFakeSequencer()
	counter := &fakeYearCounter{counts: map[int]int64{2025: 41}}
	gen := NewGenerator(seq, counter, fixedClock(2025), zap.NewNop())

	protocol, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2025-0042", protocol)

	protocol, err = gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2025-0043", protocol)
}

func TestNext_FallsBackToStoreCountWhenSequencerDown(t *testing.T) {
	seq := newFakeSequencer()
	seq.failIncr = true
	counter := &fakeYearCounter{counts: map[int]int64{2025: 7}}
	gen := NewGenerator(seq, counter, fixedClock(2025), zap.NewNop())

	protocol, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SOL-2025-0008", protocol)
}

func TestNext_ErrorWhenBothPathsFail(t *testing.T) {
	seq := newFakeSequencer()
	seq.failIncr = true
	counter := &fakeYearCounter{err: errors.New("store down")}
	gen := NewGenerator(seq, counter, fixedClock(2025), zap.NewNop())

	_, err := gen.Next(context.Background())
	assert.Error(t, err)
}

func pad(n int) string {
	return format(0, int64(n))[len("SOL-0-"):]
}
