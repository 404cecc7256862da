package retry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/prereq-client/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	ctx := context.Background()
	strategy := Limit(2)

	// One iteration has been executed. Try again.
	assert.True(t, strategy(ctx, 1, errors.New("test")))
	// Two iterations have been executed. Do not try again.
	assert.False(t, strategy(ctx, 2, errors.New("test")))

	counter, err := Retry(ctx, func() error {
		return errors.New("test")
	}, Limit(2))

	assert.EqualError(t, err, "test")
	assert.Equal(t, uint(2), counter)
}

func TestRetriableErrors(t *testing.T) {
	ctx := context.Background()
	retriableErrors := []error{
		errors.New("retriableA"),
		errors.New("retriableB"),
	}

	strategy := RetriableErrors(retriableErrors...)
	for _, err := range retriableErrors {
		assert.True(t, strategy(ctx, 1, err))
		// Ensure wrapped errors are detected.
		assert.True(t, strategy(ctx, 1, errors.Wrap(err, "wrapper")))
	}
	assert.False(t, strategy(ctx, 2, errors.New("unexpected")))
}

func TestLogged(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	counter, err := Retry(context.Background(), func() error {
		return errors.New("unavailable")
	}, Logged(logger.WithField("method", "getBalance")), Limit(3))

	assert.EqualError(t, err, "unavailable")
	assert.EqualValues(t, 3, counter)

	entries := hook.AllEntries()
	assert.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, logrus.DebugLevel, entry.Level)
		assert.EqualValues(t, i+1, entry.Data["attempt"])
		assert.Equal(t, "getBalance", entry.Data["method"])
	}
}

func TestBackoff(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts
	strategy := Backoff(backoff.Constant(100*time.Millisecond), 1*time.Second)

	for i := uint(0); i < 10; i++ {
		assert.True(t, strategy(context.Background(), i+1, errors.New("test-error")))
	}

	assert.EqualValues(t, 1*time.Second, ts.Total())
	assert.EqualValues(t, 100*time.Millisecond, ts.Mean())
	assert.EqualValues(t, 0, ts.AbsDeviation())
}

func TestBackoff_Capped(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts
	strategy := Backoff(backoff.BinaryExponential(time.Second), 3*time.Second)

	for i := uint(1); i <= 4; i++ {
		assert.True(t, strategy(context.Background(), i, errors.New("test-error")))
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, ts.sleepTimes)
}

func TestBackoffWithJitter(t *testing.T) {
	iterations := 10000
	delay := 1 * time.Millisecond

	ts := &testSleeper{}
	sleeperImpl = ts
	strategy := BackoffWithJitter(backoff.Constant(delay), delay, 0.1)

	for i := 0; i < iterations; i++ {
		assert.True(t, strategy(context.Background(), 1, errors.New("err")))
	}

	// We expect that the total time slept is (iterations * delay) +/- 10%
	assert.InDelta(t,
		float64(10*time.Second),
		float64(ts.Total()),
		float64(1*time.Second),
	)

	// We expect the mean to be the delay +/- 10%
	assert.InDelta(t,
		float64(delay),
		float64(ts.Mean()),
		0.1*float64(delay),
	)
}

func TestBackoff_ContextDone(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	strategy := Backoff(backoff.Constant(time.Millisecond), time.Millisecond)
	assert.False(t, strategy(ctx, 1, errors.New("err")))
}

type testSleeper struct {
	// We keep a history of sleepTimes, since it makes it significantly
	// easier to compute metrics about the sleeps.
	sleepTimes []time.Duration
}

func (t *testSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	t.sleepTimes = append(t.sleepTimes, d)
	return ctx.Err() == nil
}

func (t *testSleeper) Total() (total time.Duration) {
	for _, d := range t.sleepTimes {
		total += d
	}
	return total
}

func (t *testSleeper) Mean() (mean time.Duration) {
	for _, d := range t.sleepTimes {
		mean += d
	}
	return time.Duration(int(mean) / len(t.sleepTimes))
}

func (t *testSleeper) AbsDeviation() (dev time.Duration) {
	mean := t.Mean()
	for _, d := range t.sleepTimes {
		dev += time.Duration(math.Abs((float64(d) - float64(mean))))
	}
	return time.Duration(int(dev) / len(t.sleepTimes))
}
