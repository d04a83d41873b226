package outbox

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrCircuitOpen возвращается, пока брокер считается недоступным. Сообщение остаётся pending.
var ErrCircuitOpen = errors.New("outbox publisher circuit is open")

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerPublisher размыкает цепь после maxFailures ошибок подряд и не трогает брокер
// resetTimeout. После паузы пропускает одну пробную публикацию.
type BreakerPublisher struct {
	next         domain.OutboxPublisher
	maxFailures  int
	resetTimeout time.Duration
	logger       *log.Entry
	now          func() time.Time

	mu       sync.Mutex
	state    circuitState
	failures int
	openedAt time.Time
}

// NewBreakerPublisher оборачивает publisher. maxFailures < 1 заменяется на 1.
func NewBreakerPublisher(next domain.OutboxPublisher, maxFailures int, resetTimeout time.Duration, logger *log.Entry) *BreakerPublisher {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if logger == nil {
		logger = log.WithField("component", "outbox-breaker")
	}
	return &BreakerPublisher{
		next:         next,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Publish реализует domain.OutboxPublisher.
func (b *BreakerPublisher) Publish(msg domain.OutboxMessage) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := b.next.Publish(msg)
	b.record(err)
	return err
}

// State возвращает текущее состояние цепи: closed, open или half-open.
func (b *BreakerPublisher) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

func (b *BreakerPublisher) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.state = circuitHalfOpen
		b.logger.Info("outbox circuit half-open, probing broker")
		return true
	case circuitHalfOpen:
		// пробная публикация уже идёт
		return false
	default:
		return true
	}
}

func (b *BreakerPublisher) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != circuitClosed {
			b.logger.Info("outbox circuit closed")
		}
		b.state = circuitClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == circuitHalfOpen || b.failures >= b.maxFailures {
		b.state = circuitOpen
		b.openedAt = b.now()
		b.logger.WithError(err).WithField("failures", b.failures).Warn("outbox circuit opened")
	}
}
