package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"jishi/internal/db"
	"jishi/internal/models"

	"gorm.io/gorm"
)

// Notifier 把一段文字送达某个用户（聊天平台私信）。
// 失败记日志后吞掉，绝不影响已提交的状态迁移。
type Notifier interface {
	Send(userID int64, text string) error
}

// Surface 审核面：把待审内容摆到审核员面前，事后把结果写回去。
// 具体是按钮还是命令由实现决定，核心只关心 (ticket, decision) 回调。
type Surface interface {
	Present(ticketID uint, post *models.Post, kind models.TicketKind, reason string) (ref string, err error)
	Update(ref string, outcome string) error
}

// ModerationService 工单的签发与裁决。
// surface 为 nil 时 fail-open：没有审核渠道也要保证系统可用，提交即发布。
type ModerationService struct {
	surface  Surface
	notifier Notifier
	posts    *PostService
	locks    *keyedMutex
}

func NewModerationService(surface Surface, notifier Notifier, posts *PostService) *ModerationService {
	return &ModerationService{
		surface:  surface,
		notifier: notifier,
		posts:    posts,
		locks:    newKeyedMutex(),
	}
}

// ReportResult 举报结果；AlreadyReported 是幂等短路，不是错误
type ReportResult struct {
	AlreadyReported bool           `json:"already_reported"`
	Ticket          *models.Ticket `json:"ticket,omitempty"`
}

// Submit 为新帖签发审核工单。
// 未配置审核面时自动发布并返回已关闭的工单。
func (s *ModerationService) Submit(post *models.Post) (*models.Ticket, error) {
	if s.surface == nil {
		if _, err := s.posts.Approve(post.ID); err != nil {
			return nil, err
		}
		now := time.Now()
		ticket := models.Ticket{
			PostID:    post.ID,
			Kind:      models.TicketKindSubmit,
			Decision:  models.DecisionApprove,
			DecidedAt: &now,
		}
		if err := db.DB.Create(&ticket).Error; err != nil {
			return nil, &TransientError{Op: "创建工单", Err: err}
		}
		return &ticket, nil
	}

	ticket := models.Ticket{PostID: post.ID, Kind: models.TicketKindSubmit}
	if err := db.DB.Create(&ticket).Error; err != nil {
		return nil, &TransientError{Op: "创建工单", Err: err}
	}
	s.present(&ticket, post, "")
	return &ticket, nil
}

// present 把工单送上审核面，拿到消息引用后回写。失败只记日志：
// 帖子保持 pending，审核员仍可从后台处理。
func (s *ModerationService) present(ticket *models.Ticket, post *models.Post, reason string) {
	ref, err := s.surface.Present(ticket.ID, post, ticket.Kind, reason)
	if err != nil {
		log.Printf("审核面推送失败 (ticket=%d): %v", ticket.ID, err)
		return
	}
	ticket.SurfaceRef = ref
	if err := db.DB.Model(ticket).Update("surface_ref", ref).Error; err != nil {
		log.Printf("回写审核引用失败 (ticket=%d): %v", ticket.ID, err)
	}
}

// Decide 记录终态裁决并应用状态迁移。
// 同一工单串行处理；已关闭的工单直接返回当下状态，不再通知、不再变更。
func (s *ModerationService) Decide(ticketID uint, decision models.Decision) (*models.Post, error) {
	switch decision {
	case models.DecisionApprove, models.DecisionReject, models.DecisionDelete, models.DecisionKeep:
	default:
		return nil, validationf("未知的裁决 %q", decision)
	}

	key := fmt.Sprintf("ticket:%d", ticketID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var ticket models.Ticket
	if err := db.DB.First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &TransientError{Op: "读取工单", Err: err}
	}

	if ticket.Closed() {
		// 重复点击：返回先前的结果，不产生第二次副作用
		post, err := s.posts.GetByID(ticket.PostID)
		if err != nil {
			return nil, nil // 帖子已被删除（delete 裁决的重放）
		}
		return post, nil
	}

	if decision == models.DecisionKeep && ticket.Kind != models.TicketKindReport {
		return nil, validationf("keep 只适用于举报工单")
	}

	post, err := s.posts.GetByID(ticket.PostID)
	if err != nil {
		return nil, err
	}
	authorID := post.AuthorID

	switch decision {
	case models.DecisionApprove:
		post, err = s.posts.Approve(ticket.PostID)
	case models.DecisionReject:
		post, err = s.posts.Reject(ticket.PostID)
	case models.DecisionDelete:
		_, err = s.posts.Delete(ticket.PostID, nil)
		post = nil
	case models.DecisionKeep:
		// 保留内容，仅关单
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{"decision": decision, "decided_at": &now}
	if err := db.DB.Model(&ticket).Updates(updates).Error; err != nil {
		return nil, &TransientError{Op: "关闭工单", Err: err}
	}

	// 迁移已提交，下面都是尽力而为
	s.notifyOutcome(&ticket, authorID, decision)
	if s.surface != nil && ticket.SurfaceRef != "" {
		if err := s.surface.Update(ticket.SurfaceRef, outcomeText(decision)); err != nil {
			log.Printf("回写审核结果失败 (ticket=%d): %v", ticket.ID, err)
		}
	}
	return post, nil
}

func (s *ModerationService) notifyOutcome(ticket *models.Ticket, authorID int64, decision models.Decision) {
	if s.notifier == nil {
		return
	}
	var text string
	switch {
	case ticket.Kind == models.TicketKindReport && decision == models.DecisionKeep:
		return // 举报被驳回不打扰作者
	case decision == models.DecisionApprove:
		text = "✅ 你的帖子已通过审核并发布。"
	case decision == models.DecisionReject:
		text = "❌ 你的帖子未通过审核，请修改后重新提交。"
	case decision == models.DecisionDelete:
		text = "🗑 你的帖子因违反规则已被移除。"
	default:
		return
	}
	if err := s.notifier.Send(authorID, text); err != nil {
		log.Printf("通知作者失败 (user=%d): %v", authorID, err)
	}
}

func outcomeText(decision models.Decision) string {
	switch decision {
	case models.DecisionApprove:
		return "✅ 已发布"
	case models.DecisionReject:
		return "❌ 已拒绝"
	case models.DecisionDelete:
		return "🗑 已删除"
	case models.DecisionKeep:
		return "👌 已保留"
	}
	return string(decision)
}

// Report 举报。同一用户对同一帖的第二次举报返回 already_reported，
// 不产生第二张工单和第二条举报记录。
func (s *ModerationService) Report(pid string, reporterID int64, reason string) (*ReportResult, error) {
	post, err := s.posts.Get(pid)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusApproved {
		return nil, ErrNotFound
	}

	var account models.Account
	if err := db.DB.First(&account, "user_id = ?", reporterID).Error; err == nil && account.IsBanned {
		return nil, ErrForbidden
	}

	var existing models.Report
	err = db.DB.Where("post_id = ? AND reporter_id = ?", post.ID, reporterID).
		First(&existing).Error
	if err == nil {
		return &ReportResult{AlreadyReported: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &TransientError{Op: "查询举报", Err: err}
	}

	report := models.Report{PostID: post.ID, ReporterID: reporterID, Reason: reason}
	if err := db.DB.Create(&report).Error; err != nil {
		// 并发重复举报会撞 (post_id, reporter_id) 唯一索引。
		// 复查一遍成员关系：确实有了就是重复，否则是存储故障
		var dup models.Report
		if db.DB.Where("post_id = ? AND reporter_id = ?", post.ID, reporterID).
			First(&dup).Error == nil {
			return &ReportResult{AlreadyReported: true}, nil
		}
		return nil, &TransientError{Op: "创建举报", Err: err}
	}

	ticket := models.Ticket{
		PostID:     post.ID,
		Kind:       models.TicketKindReport,
		ReporterID: &reporterID,
		Reason:     reason,
	}
	if err := db.DB.Create(&ticket).Error; err != nil {
		return nil, &TransientError{Op: "创建工单", Err: err}
	}
	if s.surface != nil {
		s.present(&ticket, post, reason)
	}
	return &ReportResult{Ticket: &ticket}, nil
}

// OpenReports 后台用：未裁决的举报工单
func (s *ModerationService) OpenReports() ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := db.DB.Where("kind = ? AND decision = ?", models.TicketKindReport, models.DecisionPending).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, &TransientError{Op: "查询工单", Err: err}
	}
	return tickets, nil
}
