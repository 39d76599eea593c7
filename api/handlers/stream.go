package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/liminal/agent/scheduler"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
	streamBuffer       = 256
)

// EventSource 展示事件来源；scheduler.Hub 实现该接口
type EventSource interface {
	Subscribe(buffer int) (string, <-chan scheduler.Event)
	Unsubscribe(id string)
}

// StreamHandler 通过 websocket 推送展示事件。每个连接一个订阅，
// 客户端读得慢时由 Hub 丢弃事件，不影响调度。
type StreamHandler struct {
	source  EventSource
	origins []string
	logger  *zap.Logger
}

// NewStreamHandler 创建流处理器；origins 为允许的跨域来源模式
func NewStreamHandler(source EventSource, origins []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		source:  source,
		origins: origins,
		logger:  logger.With(zap.String("handler", "stream")),
	}
}

// HandleStream 升级为 websocket 并转发事件，直到任一方关闭
// @Summary 展示事件流
// @Tags 对话
// @Router /api/v1/stream [get]
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	id, events := h.source.Subscribe(streamBuffer)
	defer h.source.Unsubscribe(id)
	h.logger.Info("stream subscriber connected", zap.String("subscription", id), zap.String("remote_addr", r.RemoteAddr))

	// 不接收客户端消息；连接关闭时 ctx 结束
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream subscriber disconnected", zap.String("subscription", id))
			return
		case <-ping.C:
			if err := h.ping(ctx, conn); err != nil {
				h.logger.Debug("stream ping failed", zap.String("subscription", id), zap.Error(err))
				return
			}
		case e, ok := <-events:
			if !ok {
				// 订阅因过慢被移除；客户端重连后由 conversation 事件拿到完整内容
				conn.Close(websocket.StatusTryAgainLater, "subscriber fell behind, reconnect")
				return
			}
			if err := h.write(ctx, conn, e); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug("stream write failed", zap.String("subscription", id), zap.Error(err))
				}
				return
			}
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, e scheduler.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}

func (h *StreamHandler) ping(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Ping(ctx)
}
