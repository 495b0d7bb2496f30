package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type NotificationsHandler struct {
	Notifications *notifications.Service
	Auth          Authenticator
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the stream is token-authenticated, so any origin may connect
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Route("/notifications", func(nr chi.Router) {
		nr.Get("/", h.list)
		nr.Get("/unread-count", h.unreadCount)
		nr.Patch("/read-all", h.markAllRead)
		nr.Patch("/{id}/read", h.markRead)
	})
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := queryBoolPtr(r, "unreadOnly")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, info, err := h.Notifications.List(ctx, currentUser(r).ID, unread != nil && *unread, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody("notifications", list, info))
}

func (h *NotificationsHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	n, err := h.Notifications.UnreadCount(ctx, currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *NotificationsHandler) markRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	n, err := h.Notifications.MarkRead(ctx, currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationsHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	n, err := h.Notifications.MarkAllRead(ctx, currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// stream pushes the caller's new notifications over a websocket. Browsers
// cannot set headers on the upgrade request, so the access token may also
// come as ?token=.
func (h *NotificationsHandler) stream(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	authCtx, cancelAuth := context.WithTimeout(r.Context(), readTimeout)
	u, err := h.Auth.Authenticate(authCtx, token)
	cancelAuth()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	feed, unsubscribe, err := h.Notifications.Subscribe(ctx, u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		loggerFrom(r.Context()).Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	log := loggerFrom(r.Context()).With(zap.String("user_id", u.ID))
	log.Info("notification stream opened")
	go readPump(conn, cancel)
	writePump(ctx, conn, feed, log)
	log.Info("notification stream closed")
}

// readPump discards client messages and keeps the read deadline moving on
// pongs. It cancels the stream once the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, feed <-chan notifications.Notification, log *zap.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case n, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(n); err != nil {
				log.Debug("websocket write", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
