package services

import (
	"errors"
	"fmt"
)

// 错误分类：校验失败和配额直接回给用户，NotFound 统一表现为"内容不存在"，
// 状态迁移提交后的通知/广播失败只记日志，绝不回滚迁移。
var (
	ErrNotFound  = errors.New("内容不存在或已被删除")
	ErrForbidden = errors.New("没有权限执行此操作")
)

// ValidationError 输入不合法，消息原样返回给提交者
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// QuotaExceededError 发布额度已满，携带当前用量
type QuotaExceededError struct {
	Used  int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("发布额度已满（%d/%d），删除一条已发布的帖子后再试", e.Used, e.Limit)
}

// TransientError 外部依赖的临时故障（存储、通知），核心迁移已提交时只作记录
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
