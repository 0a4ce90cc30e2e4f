// Package monitoring 通过WebSocket向页面推送预测结果
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"matclass/ml"
)

// MessageType 消息类型
type MessageType string

const (
	Prediction MessageType = "prediction"
	Heartbeat  MessageType = "heartbeat"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendQueue    = 16
)

// Message 推送消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// Client WebSocket客户端
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	clientID  string
	sessionID string
}

type delivery struct {
	sessionID string
	payload   []byte
}

// Hub 按会话分发结果的WebSocket中心
type Hub struct {
	clients    map[string]map[*Client]bool
	count      int
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *zap.Logger
}

// NewHub 创建WebSocket中心，需要调用Run启动
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Run 事件循环，Stop后返回
func (h *Hub) Run() {
	defer h.logger.Debug("websocket hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.sessionID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.sessionID] = set
			}
			set[client] = true
			h.count++
			total := h.count
			h.mu.Unlock()
			h.logger.Debug("websocket client connected",
				zap.String("client", client.clientID),
				zap.String("session", client.sessionID),
				zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			total := h.count
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected",
				zap.String("client", client.clientID),
				zap.Int("total", total))

		case d := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[d.sessionID] {
				select {
				case client.send <- d.payload:
				default:
					// 发送队列已满，断开慢客户端
					h.remove(client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove 需持有写锁
func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.sessionID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
	close(c.send)
	h.count--
}

// Stop 停止中心并关闭所有连接
func (h *Hub) Stop() {
	h.cancel()
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Serve 将连接升级为WebSocket并绑定到会话
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, sendQueue),
		clientID:  uuid.NewString(),
		sessionID: sessionID,
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump(h.logger)
	go client.readPump(h)
}

// Publish 向会话的所有页面推送结果
func (h *Hub) Publish(sessionID string, outcome ml.Outcome) {
	data, err := json.Marshal(outcome.View())
	if err != nil {
		h.logger.Error("marshal outcome", zap.Error(err))
		return
	}
	msg, err := json.Marshal(Message{
		Type:      Prediction,
		Timestamp: time.Now(),
		Data:      data,
		ID:        sessionID,
	})
	if err != nil {
		h.logger.Error("marshal message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- delivery{sessionID: sessionID, payload: msg}:
	default:
		h.logger.Warn("websocket broadcast queue is full, dropping message", zap.String("session", sessionID))
	}
}

// writePump WebSocket写入泵
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只用于检测断开，客户端消息被丢弃
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}
