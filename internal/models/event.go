package models

type EventKind string

const (
	EventPostApproved     EventKind = "post_approved"
	EventPostRejected     EventKind = "post_rejected"
	EventPostDeleted      EventKind = "post_deleted"
	EventPostLiked        EventKind = "post_liked"
	EventFavoritesUpdated EventKind = "favorites_updated"
	EventHiddenUpdated    EventKind = "hidden_updated"
	EventQuotaUpdated     EventKind = "quota_updated"
	EventUserBanned       EventKind = "user_banned"
	EventUserUnbanned     EventKind = "user_unbanned"
	EventUserSynced       EventKind = "user_synced"
	EventPong             EventKind = "pong"
	EventError            EventKind = "error"
)

// Event 是广播到 viewer 会话的状态变更消息，客户端按 type 分发
type Event struct {
	Kind    EventKind `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type PostEventPayload struct {
	Post *Post `json:"post"`
}

type PostRefPayload struct {
	ID       uint   `json:"id"`
	Pid      string `json:"pid"`
	AuthorID int64  `json:"author_id,omitempty"`
}

type LikePayload struct {
	Pid       string `json:"pid"`
	LikeCount int    `json:"like_count"`
}

type ReactionPayload struct {
	Pid   string `json:"pid"`
	Added bool   `json:"added"`
}

type QuotaPayload struct {
	Used  int `json:"used"`
	Limit int `json:"total"`
}

type BanPayload struct {
	Reason string `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
