// Package idempotency обеспечивает повторную доставку ответа по Idempotency-Key
// и периодическую очистку просроченных ключей.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultTTL задаёт время жизни сохранённого ответа.
const DefaultTTL = 24 * time.Hour

// Response хранит ответ, который нужно вернуть повторно.
type Response struct {
	Status int
	Body   []byte
}

// Guard оборачивает обработку запроса ключом идемпотентности.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	logger *log.Entry
	now    func() time.Time
}

// NewGuard создаёт Guard; ttl <= 0 заменяется на DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RequestHash считает отпечаток запроса: область (метод, маршрут) и тело.
func RequestHash(scope string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{':'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin занимает ключ. Возможные исходы:
//   - (nil, nil) — ключ новый, запрос нужно выполнить и затем вызвать Finish;
//   - (resp, nil) — запрос уже выполнен, resp нужно вернуть как есть;
//   - ErrIdempotencyHashMismatch или ErrIdempotencyInProgress — конфликт.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (*Response, error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	if err == nil {
		return nil, nil
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			status := record.HTTPStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			return &Response{Status: status, Body: record.ResponseBody}, nil
		case domain.IdempotencyStatusProcessing:
			return nil, domain.ErrIdempotencyInProgress
		default:
			return nil, fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		return nil, fmt.Errorf("create idempotency record: %w", err)
	}
}

// Finish сохраняет ответ: статусы < 400 как done, 4xx как failed.
// Ответы 5xx не сохраняются, ключ освобождается и повтор выполнит запрос заново.
// Ошибка сохранения только логируется: ответ клиенту уже сформирован.
func (g *Guard) Finish(ctx context.Context, key string, status int, body []byte) {
	var err error
	switch {
	case status >= http.StatusInternalServerError:
		g.Release(ctx, key)
		return
	case status >= http.StatusBadRequest:
		err = g.repo.MarkFailed(ctx, key, body, status)
	default:
		err = g.repo.MarkDone(ctx, key, body, status)
	}
	if err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"idempotency_key": key,
			"status":          status,
		}).Warn("failed to store idempotent response")
	}
}

// Release удаляет ключ, занятый Begin, без сохранения ответа.
// Вызывается, когда обработчик упал или вернул 5xx.
func (g *Guard) Release(ctx context.Context, key string) {
	if err := g.repo.Delete(ctx, key); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).
			Warn("failed to release idempotency key")
	}
}
