package mcproxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRecordingObservesTraversalWithoutRealIO(t *testing.T) {
	// given
	var destinations []AccessPoint
	var splitters []string

	ctx := CreateRecording(RecordingOptions{
		DestinationCB: func(pool string, index int, ap AccessPoint) {
			destinations = append(destinations, ap)
		},
		ShardSplitCB: func(splitter string) {
			splitters = append(splitters, splitter)
		},
	})

	// when
	ctx.RecordShardSplitter("shard_by_key")
	ctx.RecordDestination("poolA", 0, AccessPoint{Pool: "poolA", Address: "10.0.0.1:11211"})

	// then
	assert.True(t, ctx.Recording())
	assert.Equal(t, []string{"shard_by_key"}, splitters)
	require.Len(t, destinations, 1)
	assert.Equal(t, "10.0.0.1:11211", destinations[0].Address)
}

func TestCreateRecordingStartProcessingPanics(t *testing.T) {
	// given
	ctx := CreateRecording(RecordingOptions{})
	ctx.Process(&SharedConfig{})

	// then
	assert.Panics(t, func() {
		ctx.StartProcessing()
	}, "start_processing is a programming error on a recording context")
}

func TestCreateRecordingOnReplyReceivedIsNoop(t *testing.T) {
	// given
	called := false
	ctx := CreateRecording(RecordingOptions{})
	ctx.loggers = []ReplyLogger{
		ReplyLoggerFunc(func(*RequestContext, ReplyEvent) { called = true }),
	}

	// when
	ctx.OnReplyReceived(ReplyEvent{})

	// then
	assert.False(t, called, "recording contexts must not run reply loggers")
}

func TestCreateRecordingNotifySignalsBatonOnRelease(t *testing.T) {
	// given
	baton := NewBaton()
	ctx := CreateRecordingNotify(RecordingOptions{}, baton)

	released := make(chan struct{})
	go func() {
		baton.Wait()
		close(released)
	}()

	// when
	ctx.Release()

	// then
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("baton was not signalled by Release")
	}
}

func TestBatonSignalIsIdempotent(t *testing.T) {
	// given
	baton := NewBaton()

	// when
	baton.Signal()
	baton.Signal()

	// then: Wait must not block
	done := make(chan struct{})
	go func() {
		baton.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("signalling twice must still unblock Wait exactly as once would")
	}
}
