package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFeedTestServer 起一个升级连接并订阅到 hub 的 WebSocket 服务
func newFeedTestServer(t *testing.T, hub *FeedHub, userID uint) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Subscribe(userID, conn)
	}))
}

func dialFeed(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestFeedHubPublish_DeliversToOwner(t *testing.T) {
	hub := NewFeedHub()
	srv := newFeedTestServer(t, hub, 1)
	defer srv.Close()

	conn := dialFeed(t, srv)
	defer conn.Close()

	// 等订阅完成
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(1, FeedEvent{Resource: FeedResourceTransaction, Action: FeedActionCreated, ID: 42})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev FeedEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, FeedResourceTransaction, ev.Resource)
	assert.Equal(t, FeedActionCreated, ev.Action)
	assert.Equal(t, uint(42), ev.ID)
}

func TestFeedHubPublish_FiltersByUser(t *testing.T) {
	hub := NewFeedHub()
	srv := newFeedTestServer(t, hub, 2)
	defer srv.Close()

	conn := dialFeed(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	// 推给别的用户：本连接不应收到
	hub.Publish(1, FeedEvent{Resource: FeedResourceBudget, Action: FeedActionDeleted, ID: 7})

	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var ev FeedEvent
	err := conn.ReadJSON(&ev)
	assert.Error(t, err) // 读超时
}

func TestFeedHubUnsubscribe_Idempotent(t *testing.T) {
	hub := NewFeedHub()
	srv := newFeedTestServer(t, hub, 1)
	defer srv.Close()

	conn := dialFeed(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	// 关闭客户端连接后，写失败触发自清理（对端关闭后首次写可能仍成功，循环推几次）
	conn.Close()
	require.Eventually(t, func() bool {
		hub.Publish(1, FeedEvent{Resource: FeedResourceCategory, Action: FeedActionUpdated, ID: 1})
		return hub.SubscriberCount() == 0
	}, 2*time.Second, 20*time.Millisecond)

	// 对不存在的订阅号重复取消不 panic
	hub.Unsubscribe("no-such-id")
}

func TestFeedHubPublish_NoSubscribers(t *testing.T) {
	hub := NewFeedHub()
	// 没有订阅者时发布是无害的
	hub.Publish(1, FeedEvent{Resource: FeedResourceTransaction, Action: FeedActionCreated, ID: 1})
	assert.Zero(t, hub.SubscriberCount())
}
