package services

import (
	"encoding/json"
	"log"
	"sync"

	"jishi/internal/models"
)

// Session 一条已连接的 viewer 会话。Send 必须快速返回：
// 实现方自己做缓冲，写不进去就返回错误，Hub 会把它当作掉线处理。
type Session interface {
	UserID() int64 // 0 表示匿名会话
	Send(data []byte) error
}

// Hub 把状态变更事件尽力推送给所有在线会话。
// 不持久化、不重放，某个会话失败不影响其他会话。
type Hub struct {
	mu       sync.RWMutex
	sessions map[Session]struct{}
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[Session]struct{})}
}

func (h *Hub) Register(s Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// Unregister 幂等，重复注销无副作用
func (h *Hub) Unregister(s Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish 序列化一次，广播给全部会话
func (h *Hub) Publish(ev models.Event) {
	h.fanout(ev, nil)
}

// PublishTo 只发给绑定了指定用户的会话（配额、封禁等私有通知）
func (h *Hub) PublishTo(userID int64, ev models.Event) {
	h.fanout(ev, func(s Session) bool {
		return s.UserID() == userID
	})
}

func (h *Hub) fanout(ev models.Event, match func(Session) bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("事件序列化失败 (%s): %v", ev.Kind, err)
		return
	}

	// 快照后在锁外发送，慢会话不会阻塞注册/注销
	h.mu.RLock()
	targets := make([]Session, 0, len(h.sessions))
	for s := range h.sessions {
		if match == nil || match(s) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.Send(data); err != nil {
			log.Printf("会话写入失败，移除: %v", err)
			h.Unregister(s)
		}
	}
}
