package service

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 变更事件的资源类型
const (
	FeedResourceTransaction = "transaction"
	FeedResourceBudget      = "budget"
	FeedResourceCategory    = "category"
)

// 变更事件的动作
const (
	FeedActionCreated = "created"
	FeedActionUpdated = "updated"
	FeedActionDeleted = "deleted"
)

// FeedEvent 数据变更事件，按用户推送给其在线连接
type FeedEvent struct {
	Resource string `json:"resource"` // transaction/budget/category
	Action   string `json:"action"`   // created/updated/deleted
	ID       uint   `json:"id"`
}

// feedSubscriber 单个 WebSocket 订阅者
type feedSubscriber struct {
	id     string
	userID uint
	send   chan FeedEvent
}

// FeedHub 变更推送中心
// 写操作完成后 Publish，事件只会发给同一用户的订阅连接；
// 慢消费者的事件直接丢弃（推送仅用于触发前端重新拉取，丢失无害）
type FeedHub struct {
	mu   sync.RWMutex
	subs map[string]*feedSubscriber
}

// NewFeedHub 创建变更推送中心
func NewFeedHub() *FeedHub {
	return &FeedHub{subs: make(map[string]*feedSubscriber)}
}

// Subscribe 注册一个 WebSocket 连接，返回订阅者ID
// 会启动写协程，连接写失败或 Unsubscribe 后自动清理
func (h *FeedHub) Subscribe(userID uint, conn *websocket.Conn) string {
	sub := &feedSubscriber{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan FeedEvent, 16),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go func() {
		defer func() {
			h.Unsubscribe(sub.id)
			_ = conn.Close()
		}()
		for ev := range sub.send {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("变更推送写入失败 (sub=%s): %v", sub.id, err)
				return
			}
		}
	}()

	return sub.id
}

// Unsubscribe 取消订阅（幂等）
func (h *FeedHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.send)
	}
}

// Publish 向某用户的所有订阅连接推送事件
func (h *FeedHub) Publish(userID uint, ev FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.send <- ev:
		default:
			// 缓冲满：丢弃，前端下次拉取时自然追平
		}
	}
}

// SubscriberCount 当前订阅者数量（测试与监控用）
func (h *FeedHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
