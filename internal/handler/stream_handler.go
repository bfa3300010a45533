package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/service"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/middleware/cors"
)

const (
	streamWriteWait      = 10 * time.Second
	streamPongWait       = 60 * time.Second
	streamPingPeriod     = (streamPongWait * 9) / 10
	streamMaxMessageSize = 64 << 10
)

// StreamHandler upgrades page connections to WebSocket sessions.
type StreamHandler struct {
	upgrader websocket.Upgrader
	opts     service.SessionOptions
	logger   *zap.Logger
}

// NewStreamHandler accepts connections from allowedOrigins; an empty list accepts any origin.
func NewStreamHandler(opts service.SessionOptions, allowedOrigins []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cors.OriginSet(allowedOrigins)
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.Allowed(origins, origin)
			},
		},
		opts:   opts,
		logger: logger,
	}
}

// Serve godoc
// @Summary Live content stream
// @Description WebSocket carrying section updates, carousel positions and lazy image results
// @Tags Stream
// @Success 101
// @Router /stream [get]
func (h *StreamHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already answered the request.
		h.logger.Debug("websocket upgrade rejected", zap.Error(err))
		return
	}
	defer conn.Close()

	session := service.NewSession(c.Request.Context(), h.opts)
	logger := h.logger.With(zap.String("session_id", session.ID()))
	if err := session.Start(); err != nil {
		session.Close()
		logger.Error("session start failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"), time.Now().Add(streamWriteWait))
		return
	}
	logger.Debug("stream session opened")

	writerDone := make(chan struct{})
	go h.writeLoop(conn, session, logger, writerDone)

	h.readLoop(conn, session, logger)
	session.Close()
	<-writerDone
	logger.Debug("stream session closed")
}

func (h *StreamHandler) readLoop(conn *websocket.Conn, session *service.Session, logger *zap.Logger) {
	conn.SetReadLimit(streamMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("stream read failed", zap.Error(err))
			}
			return
		}

		var msg dto.StreamClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			session.Emit(dto.StreamErrorMessage{Type: dto.StreamMessageError, Message: "malformed message"})
			continue
		}
		if err := session.Handle(msg); err != nil {
			session.Emit(dto.StreamErrorMessage{Type: dto.StreamMessageError, Message: appErrors.FromError(err).Message})
		}
	}
}

// writeLoop is the only writer on conn.
func (h *StreamHandler) writeLoop(conn *websocket.Conn, session *service.Session, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-session.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteWait))
			return
		case msg := <-session.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("stream write failed", zap.Error(err))
				// Unblocks the reader so the session shuts down.
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
