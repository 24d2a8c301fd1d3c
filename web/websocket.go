package web

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"matchsim-service/models"
)

// WSMessage WebSocket 推送消息结构
type WSMessage struct {
	Type      string                  `json:"type"` // snapshot | event
	MatchID   int64                   `json:"match_id"`
	Event     *models.MatchEvent      `json:"event,omitempty"`
	Snapshot  *models.SessionSnapshot `json:"snapshot,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

// Client 一个观众的 WebSocket 连接
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	matchID int64
}

// 每个订阅者的发送队列上限，溢出时丢最旧的一条
const clientQueueSize = 64

// Hub 按比赛分房间的 WebSocket 广播器。
// 所有注册/注销/广播都经过唯一的 Run 协程串行处理，因此
// 新订阅者先收到完整快照、之后按应用顺序收到增量事件。
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan *WSMessage
	rooms      map[int64]map[*Client]bool

	// 由 main 接入会话管理器的公开原语
	snapshot func(matchID int64) (models.SessionSnapshot, error)
	join     func(matchID int64) (int64, error)
	leave    func(matchID int64) (int64, error)
}

// NewHub 创建 Hub
func NewHub(
	snapshot func(matchID int64) (models.SessionSnapshot, error),
	join func(matchID int64) (int64, error),
	leave func(matchID int64) (int64, error),
) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *WSMessage, 1024),
		rooms:      make(map[int64]map[*Client]bool),
		snapshot:   snapshot,
		join:       join,
		leave:      leave,
	}
}

// Run 运行 Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room := h.rooms[client.matchID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.matchID] = room
			}
			room[client] = true
			if h.join != nil {
				h.join(client.matchID)
			}
			// 中途加入先给一次完整快照（阶段、比分、分钟、全部事件日志），
			// 之后只推增量事件。快照取自实时状态，broadcast 队列里可能还压着
			// 快照已包含的事件，注册后会再送达一次：投递语义是 at-least-once，
			// 客户端按事件 ID 去重，不会收到半份快照
			if h.snapshot != nil {
				if snap, err := h.snapshot(client.matchID); err == nil {
					client.trySend(marshalMessage(&WSMessage{
						Type:      "snapshot",
						MatchID:   client.matchID,
						Snapshot:  &snap,
						Timestamp: time.Now().Unix(),
					}))
				}
			}
			log.Printf("Spectator joined match %d. Room size: %d", client.matchID, len(room))

		case client := <-h.unregister:
			if room, ok := h.rooms[client.matchID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					if len(room) == 0 {
						delete(h.rooms, client.matchID)
					}
					if h.leave != nil {
						h.leave(client.matchID)
					}
				}
			}
			log.Printf("Spectator left match %d", client.matchID)

		case message := <-h.broadcast:
			data := marshalMessage(message)
			for client := range h.rooms[message.MatchID] {
				client.trySend(data)
			}
		}
	}
}

// BroadcastEvent 实现 services.Broadcaster 接口。
// 即发即弃：Hub 队列满时丢弃，绝不阻塞 tick 循环。
func (h *Hub) BroadcastEvent(matchID int64, ev models.MatchEvent) {
	h.enqueue(&WSMessage{
		Type:      "event",
		MatchID:   matchID,
		Event:     &ev,
		Timestamp: time.Now().Unix(),
	})
}

// BroadcastSnapshot 实现 services.Broadcaster 接口
func (h *Hub) BroadcastSnapshot(matchID int64, snap models.SessionSnapshot) {
	h.enqueue(&WSMessage{
		Type:      "snapshot",
		MatchID:   matchID,
		Snapshot:  &snap,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) enqueue(msg *WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("Hub broadcast queue full, dropping %s for match %d", msg.Type, msg.MatchID)
	}
}

// trySend 向客户端队列投递，满时丢最旧的一条再试。
// 掉线或卡死的订阅者只影响自己，不影响其他人。
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}

// marshalMessage 序列化消息
func marshalMessage(message *WSMessage) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return []byte("{}")
	}
	return data
}

// readPump 读取客户端消息。观众只读不写，收到的内容直接丢弃，
// 连接出错时注销。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump 向客户端写入消息
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
