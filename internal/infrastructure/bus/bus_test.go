package bus

import (
	"testing"

	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/hansol-oss/intrachat/internal/infrastructure/metrics"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	return New(zap.NewNop().Sugar(), metrics.NewForTesting(), 16)
}

func TestPublish_DeliversEachEventOnceInOrder(t *testing.T) {
	b := newTestBus(t)

	var got []int64
	off := b.Subscribe(1, func(ev domain.Event) {
		got = append(got, ev.Data.(domain.ReadData).LastMessageID)
	})
	defer off()

	for i := int64(1); i <= 5; i++ {
		b.Publish([]int64{1}, domain.NewReadEvent(10, 2, i))
	}

	require.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestPublish_DeduplicatesTargets(t *testing.T) {
	b := newTestBus(t)

	calls := 0
	off := b.Subscribe(1, func(domain.Event) { calls++ })
	defer off()

	b.Publish([]int64{1, 1, 1, 0, -3}, domain.NewConnectedEvent())

	require.Equal(t, 1, calls)
}

func TestPublish_NoListenerDropsSilently(t *testing.T) {
	b := newTestBus(t)

	require.NotPanics(t, func() {
		b.Publish([]int64{42}, domain.NewReadEvent(1, 2, 3))
	})
}

func TestPublish_IsolatesPanickingListener(t *testing.T) {
	b := newTestBus(t)

	offA := b.Subscribe(1, func(domain.Event) { panic("boom") })
	defer offA()

	gotSameUser := 0
	offB := b.Subscribe(1, func(domain.Event) { gotSameUser++ })
	defer offB()

	gotOtherUser := 0
	offC := b.Subscribe(2, func(domain.Event) { gotOtherUser++ })
	defer offC()

	require.NotPanics(t, func() {
		b.Publish([]int64{1, 2}, domain.NewConnectedEvent())
	})

	require.Equal(t, 1, gotSameUser)
	require.Equal(t, 1, gotOtherUser)
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	b := newTestBus(t)

	calls := 0
	off := b.Subscribe(1, func(domain.Event) { calls++ })

	require.Equal(t, 1, b.ListenerCount())

	off()
	off()
	off()

	require.Equal(t, 0, b.ListenerCount())

	b.Publish([]int64{1}, domain.NewConnectedEvent())
	require.Equal(t, 0, calls)
}

func TestSubscribe_MultiplePerUser(t *testing.T) {
	b := newTestBus(t)

	first, second := 0, 0
	off1 := b.Subscribe(7, func(domain.Event) { first++ })
	defer off1()
	off2 := b.Subscribe(7, func(domain.Event) { second++ })
	defer off2()

	b.Publish([]int64{7}, domain.NewConnectedEvent())

	require.Equal(t, 1, first)
	require.Equal(t, 1, second)
}

func TestSubscribeChan_DropsWhenBufferFull(t *testing.T) {
	b := New(zap.NewNop().Sugar(), metrics.NewForTesting(), 2)

	ch, off := b.SubscribeChan(1)
	defer off()

	for i := int64(1); i <= 5; i++ {
		b.Publish([]int64{1}, domain.NewReadEvent(1, 2, i))
	}

	// buffer of 2: the first two survive, the rest are dropped
	require.Len(t, ch, 2)
	first := <-ch
	require.Equal(t, int64(1), first.Data.(domain.ReadData).LastMessageID)
	second := <-ch
	require.Equal(t, int64(2), second.Data.(domain.ReadData).LastMessageID)
}
