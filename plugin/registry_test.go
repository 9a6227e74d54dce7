package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/plugin"
)

type recorder struct {
	name     string
	recorded atomic.Int32
	closed   atomic.Int32
	fail     bool
	block    time.Duration
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnJournalEntryRecorded(_ context.Context, _ *event.JournalEntryRecorded) error {
	if r.block > 0 {
		time.Sleep(r.block)
	}
	r.recorded.Add(1)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) OnDailyClosed(_ context.Context, _ *event.DailyClosed) error {
	r.closed.Add(1)
	return nil
}

type nameOnly struct{}

func (nameOnly) Name() string { return "name-only" }

var key = ledger.Key{TenantID: "t", SiteID: "s", Country: "DE"}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(&recorder{name: "a"}))
	require.NoError(t, reg.Register(nameOnly{}))
	assert.Error(t, reg.Register(&recorder{name: "a"}))

	assert.Equal(t, 2, reg.Count())
	assert.NotNil(t, reg.Get("a"))
	assert.Nil(t, reg.Get("missing"))
	assert.Len(t, reg.List(), 2)
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	reg := plugin.NewRegistry()
	a := &recorder{name: "a"}
	b := &recorder{name: "b", fail: true}
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))
	require.NoError(t, reg.Register(nameOnly{}))

	ctx := context.Background()
	reg.EmitJournalEntryRecorded(ctx, &event.JournalEntryRecorded{Key: key})
	reg.EmitDailyClosed(ctx, &event.DailyClosed{Key: key})
	assert.NoError(t, reg.EmitDailyArchiveGenerated(ctx, &event.DailyArchiveGenerated{Key: key}))

	// A failing plugin does not stop dispatch to the others.
	assert.Equal(t, int32(1), a.recorded.Load())
	assert.Equal(t, int32(1), b.recorded.Load())
	assert.Equal(t, int32(1), a.closed.Load())
}

func TestSlowPluginTimesOut(t *testing.T) {
	reg := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	slow := &recorder{name: "slow", block: 200 * time.Millisecond}
	require.NoError(t, reg.Register(slow))

	start := time.Now()
	reg.EmitJournalEntryRecorded(context.Background(), &event.JournalEntryRecorded{Key: key})
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

type sink struct {
	name     string
	required bool
	err      error
}

func (s *sink) Name() string           { return s.name }
func (s *sink) PersistsArchives() bool { return s.required }

func (s *sink) OnDailyArchiveGenerated(_ context.Context, _ *event.DailyArchiveGenerated) error {
	return s.err
}

func TestArchiveSinkFailuresAreReturned(t *testing.T) {
	reg := plugin.NewRegistry()
	bucketDown := errors.New("bucket unavailable")
	require.NoError(t, reg.Register(&sink{name: "s3", required: true, err: bucketDown}))
	require.NoError(t, reg.Register(&sink{name: "notify", err: errors.New("nats down")}))
	require.NoError(t, reg.Register(&sink{name: "fs", required: true}))

	err := reg.EmitDailyArchiveGenerated(context.Background(), &event.DailyArchiveGenerated{Key: key})
	require.Error(t, err)
	assert.ErrorIs(t, err, bucketDown)
	assert.Contains(t, err.Error(), "s3")
	assert.NotContains(t, err.Error(), "nats down")
}

func TestArchiveSinkTimeoutIsAFailure(t *testing.T) {
	reg := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, reg.Register(&slowSink{}))

	err := reg.EmitDailyArchiveGenerated(context.Background(), &event.DailyArchiveGenerated{Key: key})
	assert.ErrorContains(t, err, "plugin timeout")
}

type slowSink struct{}

func (slowSink) Name() string           { return "slow-sink" }
func (slowSink) PersistsArchives() bool { return true }

func (slowSink) OnDailyArchiveGenerated(_ context.Context, _ *event.DailyArchiveGenerated) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}
