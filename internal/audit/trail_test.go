package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryStorage struct {
	mu      sync.Mutex
	batches [][]Event
}

func (m *memoryStorage) WriteBatch(_ context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(events))
	copy(cp, events)
	m.batches = append(m.batches, cp)
	return nil
}

func (m *memoryStorage) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestTrailDrainsOnStop(t *testing.T) {
	storage := &memoryStorage{}
	trail := NewTrail(storage, Config{BatchSize: 10, FlushInterval: time.Hour}, zap.NewNop())
	trail.Start()

	for i := 0; i < 25; i++ {
		trail.Log(Event{RequestID: "req-1", Action: "hold_request"})
	}
	trail.Stop()

	require.Equal(t, 25, storage.total())
	require.Len(t, storage.batches, 3)

	// После остановки события отбрасываются, повторный Stop безопасен
	trail.Log(Event{RequestID: "req-1"})
	trail.Stop()
	require.Equal(t, 25, storage.total())
}

func TestTrailFlushesOnTicker(t *testing.T) {
	storage := &memoryStorage{}
	trail := NewTrail(storage, Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	trail.Start()
	defer trail.Stop()

	trail.Log(Event{RequestID: "req-1"})
	require.Eventually(t, func() bool { return storage.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTrailLoadShedding(t *testing.T) {
	storage := &memoryStorage{}
	trail := NewTrail(storage, Config{BufferSize: 2}, zap.NewNop())

	var fill []int
	trail.OnBufferFill(func(n int) { fill = append(fill, n) })

	// Воркер не запущен: третье событие не помещается
	trail.Log(Event{ID: "1"})
	trail.Log(Event{ID: "2"})
	trail.Log(Event{ID: "3"})
	require.Equal(t, []int{1, 2}, fill)

	trail.Start()
	trail.Stop()
	require.Equal(t, 2, storage.total())
}
