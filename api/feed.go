package api

import (
	"log"
	"net/http"

	"minty/middleware"
	"minty/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// FeedHandler WebSocket 变更推送处理器
type FeedHandler struct {
	feed     *service.FeedHub
	upgrader websocket.Upgrader
}

// NewFeedHandler 创建变更推送处理器
func NewFeedHandler(feed *service.FeedHub) *FeedHandler {
	return &FeedHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 前端与 API 可能不同源，鉴权靠 JWT 而不是 Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe 订阅数据变更推送
// @Summary 订阅数据变更推送（WebSocket）
// @Description 升级为 WebSocket 连接，推送当前用户的交易/预算/分类变更事件
// @Description （JSON：{resource, action, id}）。事件仅提示数据已变化，客户端收到后重新拉取
// @Tags 推送
// @Security BearerAuth
// @Success 101 {string} string "协议升级成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/ws [get]
func (h *FeedHandler) Subscribe(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已向客户端写了响应
		log.Printf("WebSocket 升级失败 (user=%d): %v", userID, err)
		return
	}

	subID := h.feed.Subscribe(userID, conn)

	// 读循环只为感知关闭与响应 ping，收到的消息一律忽略
	go func() {
		defer h.feed.Unsubscribe(subID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
