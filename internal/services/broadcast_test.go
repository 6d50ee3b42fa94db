package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"jishi/internal/models"
)

type memSession struct {
	mu     sync.Mutex
	userID int64
	sent   [][]byte
	broken bool
}

func (s *memSession) UserID() int64 { return s.userID }

func (s *memSession) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return errors.New("连接已断开")
	}
	s.sent = append(s.sent, data)
	return nil
}

func (s *memSession) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestPublishReachesAllSessions(t *testing.T) {
	hub := NewHub()
	a := &memSession{userID: 1}
	b := &memSession{userID: 2}
	anon := &memSession{}
	hub.Register(a)
	hub.Register(b)
	hub.Register(anon)

	hub.Publish(models.Event{Kind: models.EventPostDeleted, Payload: models.PostRefPayload{Pid: "abc12345"}})

	for _, s := range []*memSession{a, b, anon} {
		if s.received() != 1 {
			t.Fatalf("会话 %d 收到 %d 条，期望 1", s.userID, s.received())
		}
	}

	var ev struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(a.sent[0], &ev); err != nil {
		t.Fatalf("事件不是合法 JSON: %v", err)
	}
	if ev.Type != string(models.EventPostDeleted) {
		t.Fatalf("事件类型 = %q", ev.Type)
	}
}

func TestPublishToFiltersByUser(t *testing.T) {
	hub := NewHub()
	mine := &memSession{userID: 7}
	mineToo := &memSession{userID: 7} // 同一用户的第二个设备
	other := &memSession{userID: 8}
	hub.Register(mine)
	hub.Register(mineToo)
	hub.Register(other)

	hub.PublishTo(7, models.Event{Kind: models.EventQuotaUpdated, Payload: models.QuotaPayload{Used: 1, Limit: 4}})

	if mine.received() != 1 || mineToo.received() != 1 {
		t.Fatal("同一用户的全部会话都应收到私有通知")
	}
	if other.received() != 0 {
		t.Fatal("私有通知不应发给其他用户")
	}
}

func TestFailedSessionUnregistered(t *testing.T) {
	hub := NewHub()
	good := &memSession{userID: 1}
	bad := &memSession{userID: 2, broken: true}
	hub.Register(good)
	hub.Register(bad)

	hub.Publish(models.Event{Kind: models.EventPong})

	if hub.Count() != 1 {
		t.Fatalf("失败的会话应被移除，当前 %d", hub.Count())
	}
	// 掉线的会话不影响其他会话继续收事件
	hub.Publish(models.Event{Kind: models.EventPong})
	if good.received() != 2 {
		t.Fatalf("正常会话收到 %d 条，期望 2", good.received())
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	hub := NewHub()
	s := &memSession{userID: 1}
	hub.Register(s)
	hub.Unregister(s)
	hub.Unregister(s)
	if hub.Count() != 0 {
		t.Fatalf("Count = %d", hub.Count())
	}
}
