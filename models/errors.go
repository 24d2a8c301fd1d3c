package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound 查询或操作了不存在的会话
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition 当前阶段不允许该状态迁移
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrSessionFinished 会话已结束，不再接受变更
	ErrSessionFinished = errors.New("session finished")

	// ErrUnauthorized 管理操作缺少有效凭证（由外部认证协作方裁决，这里只做边界映射）
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAttributes 外部提供的球队能力快照不合法
	ErrInvalidAttributes = errors.New("invalid team attributes")
)

// TransitionError 带上下文的非法迁移错误，errors.Is(err, ErrInvalidTransition) 成立
type TransitionError struct {
	Op    string
	Phase Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("operation %s not allowed in phase %s", e.Op, e.Phase)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewTransitionError 创建非法迁移错误
func NewTransitionError(op string, phase Phase) error {
	return &TransitionError{Op: op, Phase: phase}
}
