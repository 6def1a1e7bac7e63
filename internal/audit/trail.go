package audit

/*
Trail: асинхронный журнал действий над заявками.

- Неблокирующая запись: Log кладет событие в буферизованный канал и сразу
  возвращается, задержки БД не влияют на время ответа действия.
- Пакетная запись: события копятся и пишутся пачкой по таймеру или при
  достижении BatchSize.
- Drain при остановке: Stop закрывает канал, воркер вычитывает остаток и
  делает финальный flush.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Storage определяет, куда физически сохраняются события.
type Storage interface {
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	return c
}

type Trail struct {
	ch       chan Event
	repo     Storage
	cfg      Config
	logger   *zap.Logger
	wg       sync.WaitGroup
	isClosed int32 // 0 - открыт, 1 - закрыт

	// onFill получает текущую заполненность буфера (метрика backpressure)
	onFill func(n int)
}

func NewTrail(repo Storage, cfg Config, logger *zap.Logger) *Trail {
	cfg = cfg.withDefaults()
	return &Trail{
		ch:     make(chan Event, cfg.BufferSize),
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("audit-trail"),
		onFill: func(int) {},
	}
}

// OnBufferFill регистрирует наблюдателя заполненности буфера. Вызывать до Start.
func (t *Trail) OnBufferFill(fn func(n int)) {
	if fn != nil {
		t.onFill = fn
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход и ждет, пока воркер допишет остаток.
func (t *Trail) Stop() {
	if !atomic.CompareAndSwapInt32(&t.isClosed, 0, 1) {
		return
	}

	// Даем текущим Log успеть проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Load shedding: при переполнении событие уходит в лог, а не блокирует действие
	select {
	case t.ch <- event:
		t.onFill(len(t.ch))
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("request_id", event.RequestID),
			zap.String("action", event.Action),
			zap.String("trace_id", event.TraceID),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Event, 0, t.cfg.BatchSize)
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст к этому моменту может быть закрыт
		if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
			t.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		t.onFill(len(t.ch))
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
