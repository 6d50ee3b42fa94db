package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"jishi/internal/models"
	"jishi/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 90 * time.Second
	sendQueueSize = 32
)

type WSHandler struct {
	hub      *services.Hub
	quota    *services.QuotaService
	accounts *services.AccountService
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *services.Hub, quota *services.QuotaService, accounts *services.AccountService) *WSHandler {
	return &WSHandler{
		hub:      hub,
		quota:    quota,
		accounts: accounts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// mini-app 从 Telegram 的 webview 发起，Origin 不固定
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsSession 一条 WebSocket 会话。Send 只往缓冲队列里投递，
// 队列满即视为掉线，由 Hub 注销；真正的写集中在 writeLoop 单协程。
type wsSession struct {
	userID int64
	conn   *websocket.Conn
	out    chan []byte
	once   chan struct{}
}

func (s *wsSession) UserID() int64 { return s.userID }

func (s *wsSession) Send(data []byte) error {
	select {
	case s.out <- data:
		return nil
	default:
		return errors.New("发送队列已满")
	}
}

// close 只关信号通道，out 保持可写：Hub 的发送快照可能晚于注销到达
func (s *wsSession) close() {
	select {
	case <-s.once:
	default:
		close(s.once)
	}
}

func (s *wsSession) writeLoop() {
	defer s.conn.Close()
	for {
		select {
		case data := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-s.once:
			return
		}
	}
}

// clientMessage 客户端发来的指令
type clientMessage struct {
	Type string `json:"type"`
}

// Serve 升级连接、注册会话，然后阻塞在读循环直到连接断开
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket 升级失败: %v", err)
		return
	}

	var userID int64
	if account := currentAccount(c); account != nil {
		userID = account.UserID
	}

	session := &wsSession{
		userID: userID,
		conn:   conn,
		out:    make(chan []byte, sendQueueSize),
		once:   make(chan struct{}),
	}
	go session.writeLoop()

	h.hub.Register(session)
	defer func() {
		h.hub.Unregister(session)
		session.close()
	}()

	// 连上即把当前配额推给登录用户
	if userID != 0 {
		h.push(session, models.Event{
			Kind: models.EventQuotaUpdated,
			Payload: models.QuotaPayload{
				Used:  h.quota.PublishedCount(userID),
				Limit: h.quota.Limit(userID),
			},
		})
	}

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.push(session, models.Event{
				Kind:    models.EventError,
				Payload: models.ErrorPayload{Message: "无法解析的消息"},
			})
			continue
		}

		switch msg.Type {
		case "ping":
			h.push(session, models.Event{Kind: models.EventPong})
		case "sync_user":
			h.syncUser(session, userID)
		default:
			h.push(session, models.Event{
				Kind:    models.EventError,
				Payload: models.ErrorPayload{Message: "未知的消息类型 " + msg.Type},
			})
		}
	}
}

func (h *WSHandler) syncUser(session *wsSession, userID int64) {
	if userID == 0 {
		h.push(session, models.Event{
			Kind:    models.EventError,
			Payload: models.ErrorPayload{Message: "匿名会话无法同步"},
		})
		return
	}
	account, err := h.accounts.Get(userID)
	if err != nil {
		h.push(session, models.Event{
			Kind:    models.EventError,
			Payload: models.ErrorPayload{Message: "账号不存在"},
		})
		return
	}
	h.push(session, models.Event{
		Kind: models.EventUserSynced,
		Payload: gin.H{
			"account": account,
			"quota": models.QuotaPayload{
				Used:  h.quota.PublishedCount(userID),
				Limit: h.quota.Limit(userID),
			},
		},
	})
}

func (h *WSHandler) push(session *wsSession, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := session.Send(data); err != nil {
		h.hub.Unregister(session)
	}
}
