package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/agent/conversation"
	"github.com/BaSui01/liminal/types"
)

// Style 文本片段的展示样式
type Style string

const (
	StyleHeader Style = "header"
	StyleAI     Style = "ai"
	StyleSystem Style = "system"
	StyleUser   Style = "user"
)

// Display 是调度器唯一的展示出口。只会收到可见（非 hidden）消息。
type Display interface {
	DisplayConversation(visible []types.Message, branch *conversation.BranchContext)
	AppendText(text string, style Style)
	StartLoading()
	StopLoading()
}

// NopDisplay 丢弃所有展示事件
type NopDisplay struct{}

func (NopDisplay) DisplayConversation([]types.Message, *conversation.BranchContext) {}
func (NopDisplay) AppendText(string, Style)                                         {}
func (NopDisplay) StartLoading()                                                    {}
func (NopDisplay) StopLoading()                                                     {}

// EventType 展示事件类型
type EventType string

const (
	EventConversation EventType = "conversation"
	EventText         EventType = "text"
	EventLoading      EventType = "loading"
)

// Event 是推送给订阅者的一条展示事件
type Event struct {
	Type      EventType                   `json:"type"`
	Text      string                      `json:"text,omitempty"`
	Style     Style                       `json:"style,omitempty"`
	Messages  []types.Message             `json:"messages,omitempty"`
	Branch    *conversation.BranchContext `json:"branch,omitempty"`
	Loading   bool                        `json:"loading,omitempty"`
	Timestamp time.Time                   `json:"timestamp"`
}

// subscriptionCounter 生成唯一订阅 ID
var subscriptionCounter int64

// Hub 把展示事件扇出给多个订阅者（websocket、控制台）。
// 订阅者通道满时该订阅被移除并关闭通道，调度循环永不因慢订阅者阻塞，
// 留下的订阅者收到的事件既不缺失也不乱序。
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]chan Event
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewHub 创建事件集线器
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]chan Event),
		logger: logger.With(zap.String("component", "display_hub")),
	}
}

// Subscribe 订阅展示事件，返回订阅 ID 与事件通道
func (h *Hub) Subscribe(buffer int) (string, <-chan Event) {
	if buffer <= 0 {
		buffer = 64
	}
	id := fmt.Sprintf("sub-%d", atomic.AddInt64(&subscriptionCounter, 1))
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe 取消订阅并关闭通道
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped 因订阅者过慢而移除的订阅数
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) publish(e Event) {
	e.Timestamp = time.Now()

	var slow []string
	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()
	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range slow {
		ch, ok := h.subs[id]
		if !ok {
			continue
		}
		delete(h.subs, id)
		close(ch)
		h.dropped.Add(1)
		h.logger.Warn("subscriber too slow, subscription closed",
			zap.String("subscription", id),
			zap.String("type", string(e.Type)))
	}
}

func (h *Hub) DisplayConversation(visible []types.Message, branch *conversation.BranchContext) {
	h.publish(Event{Type: EventConversation, Messages: visible, Branch: branch})
}

func (h *Hub) AppendText(text string, style Style) {
	h.publish(Event{Type: EventText, Text: text, Style: style})
}

func (h *Hub) StartLoading() { h.publish(Event{Type: EventLoading, Loading: true}) }

func (h *Hub) StopLoading() { h.publish(Event{Type: EventLoading, Loading: false}) }

// MultiDisplay 把展示调用依次转发给多个 Display
type MultiDisplay []Display

func (m MultiDisplay) DisplayConversation(visible []types.Message, branch *conversation.BranchContext) {
	for _, d := range m {
		d.DisplayConversation(visible, branch)
	}
}

func (m MultiDisplay) AppendText(text string, style Style) {
	for _, d := range m {
		d.AppendText(text, style)
	}
}

func (m MultiDisplay) StartLoading() {
	for _, d := range m {
		d.StartLoading()
	}
}

func (m MultiDisplay) StopLoading() {
	for _, d := range m {
		d.StopLoading()
	}
}
