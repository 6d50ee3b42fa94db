package models

import (
	"time"
)

type TicketKind string

const (
	TicketKindSubmit TicketKind = "submit"
	TicketKindReport TicketKind = "report"
)

type Decision string

const (
	DecisionPending Decision = "pending"
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionDelete  Decision = "delete"
	DecisionKeep    Decision = "keep" // 仅用于举报工单：驳回举报、保留内容
)

// Ticket 审核工单。Decision 一旦离开 pending 即为终态，
// 重复提交同一工单的裁决不会产生第二次副作用。
type Ticket struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	PostID uint       `gorm:"not null;index" json:"post_id"`
	Kind   TicketKind `gorm:"size:16;not null;default:'submit'" json:"kind"`
	// 审核面消息的不透明引用（Telegram 场景下是消息 ID）
	SurfaceRef string    `gorm:"size:64" json:"-"`
	ReporterID *int64    `gorm:"index" json:"reporter_id,omitempty"`
	Reason     string    `gorm:"size:200" json:"reason,omitempty"`
	Decision   Decision  `gorm:"size:16;not null;default:'pending';index" json:"decision"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (t *Ticket) Closed() bool {
	return t.Decision != DecisionPending
}
