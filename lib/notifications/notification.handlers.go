package notifications

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"galaxy/lib/server/middleware"

	"github.com/gofiber/fiber/v2"
)

const sessionCheckInterval = 5 * time.Minute

// SSENotificationHandler streams the notifications of the authenticated
// empire, starting with the ones buffered while it was offline.
func (s *NotificationService) SSENotificationHandler(c *fiber.Ctx) error {
	empire_id, err := middleware.GetEmpireID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unknown empire",
		})
	}

	ctx := context.Background()
	notifications := make(chan *Notification, 100)
	close_chan, err := s.registerClient(ctx, empire_id, notifications)
	if errors.Is(err, ErrAlreadyConnected) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	} else if err != nil {
		slog.Error("Notifications : failed to register empire", "error", err, "empire_id", empire_id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open notification session",
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.unregisterClient(context.Background(), empire_id)

		w.WriteString("data: {\"type\":\"connected\"}\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		stream_ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := s.deliverStoredNotifications(stream_ctx, empire_id, notifications); err != nil && stream_ctx.Err() == nil {
				slog.Error("Notifications : failed to deliver stored notifications", "error", err, "empire_id", empire_id)
			}
		}()

		buf_ptr := s.bufPool.Get().(*[]byte)
		defer s.bufPool.Put(buf_ptr)

		check_ticker := time.NewTicker(sessionCheckInterval)
		defer check_ticker.Stop()

		for {
			select {
			case notification := <-notifications:
				buf := bytes.NewBuffer((*buf_ptr)[:0])
				notification.EmpireID = ""
				err := json.NewEncoder(buf).Encode(notification)
				s.PutNotification(notification)
				if err != nil {
					slog.Error("Notifications : failed to marshal notification", "error", err, "empire_id", empire_id)
					continue
				}

				fmt.Fprintf(w, "data: %s\n\n", bytes.TrimSpace(buf.Bytes()))
				if err := w.Flush(); err != nil {
					slog.Warn("Notifications : client disconnected (flush error)", "error", err, "empire_id", empire_id)
					return
				}

			case <-close_chan:
				slog.Debug("Notifications : received close signal", "empire_id", empire_id)
				return

			case <-check_ticker.C:
				if !s.hasActiveConnection(ctx, empire_id) {
					slog.Debug("Notifications : connection status expired", "empire_id", empire_id)
					return
				}
			}
		}
	})
	return nil
}

// RefreshConnectionTTL keeps a session marked as connected.
func (s *NotificationService) RefreshConnectionTTL(ctx context.Context, empire_id string) error {
	return s.cache.Db.Expire(ctx, connectedKey(empire_id), connectionTTL).Err()
}

// CloseConnection ends the session of an empire, if it has one.
func (s *NotificationService) CloseConnection(ctx context.Context, empire_id string) error {
	s.registry.mu.Lock()
	close_chan, exists := s.registry.closeChans[empire_id]
	if exists {
		delete(s.registry.closeChans, empire_id)
		close(close_chan)
	}
	s.registry.mu.Unlock()

	return s.cache.Db.Del(ctx, connectedKey(empire_id)).Err()
}
