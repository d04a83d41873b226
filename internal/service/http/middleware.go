package httpsvc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

const (
	identityKey = "storefront.identity"

	// HeaderIdempotencyKey несёт необязательный ключ повторной доставки для POST /api/orders.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay выставляется, когда ответ взят из сохранённого.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	maxIdempotentBody = 1 << 20
)

func identityFrom(c *gin.Context) (domain.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

// mustIdentity возвращает участника, установленного authenticate.
func mustIdentity(c *gin.Context) domain.Identity {
	identity, _ := identityFrom(c)
	return identity
}

// observe пишет одну запись лога и метрику на запрос.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		status := c.Writer.Status()
		s.metrics.Observe(c.Request.Method, route, status, elapsed)

		fields := log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      route,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if identity, ok := identityFrom(c); ok {
			fields["user_id"] = identity.UserID
		}
		entry := s.logger.WithFields(fields)
		if status >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}

// authenticate разрешает bearer-токен в domain.Identity один раз на запрос.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: "not authorized, no token"})
			return
		}

		identity, err := s.identities.ResolveToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: "not authorized, token failed"})
				return
			}
			s.respondError(c, "authenticate", err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// requireAdmin пропускает только администраторов.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !mustIdentity(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, messageResponse{Message: "access denied: admins only"})
			return
		}
		c.Next()
	}
}

// idempotent сохраняет ответ под ключом {user}:{Idempotency-Key} и отдаёт его на повтор.
// Без заголовка запрос обрабатывается как обычно.
func (s *Server) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" || s.guard == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotentBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, messageResponse{Message: "invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		scoped := mustIdentity(c).UserID + ":" + key
		hash := idempotency.RequestHash(c.Request.Method+" "+c.FullPath(), body)

		replay, err := s.guard.Begin(c.Request.Context(), scoped, hash)
		if err != nil {
			s.respondError(c, "idempotency", err)
			return
		}
		if replay != nil {
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(replay.Status, "application/json; charset=utf-8", replay.Body)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		// ответ уже отправлен клиенту, сохраняем его даже если клиент отключился
		ctx := context.WithoutCancel(c.Request.Context())
		defer func() {
			if p := recover(); p != nil {
				s.guard.Release(ctx, scoped)
				panic(p)
			}
			s.guard.Finish(ctx, scoped, recorder.Status(), recorder.body.Bytes())
		}()
		c.Next()
	}
}

// bodyRecorder копирует тело ответа для сохранения.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
