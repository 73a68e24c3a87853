package dashboard

import (
	"time"

	"github.com/betbot/botdash/internal/api"
)

// Phase 视图生命周期：Idle → Loading → Loaded | Error，Closed 为终态
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseError   Phase = "error"
	PhaseClosed  Phase = "closed"
)

// ViewState 一个视图的只读状态副本。Data 始终是最近一次成功加载的完整快照。
type ViewState struct {
	View      api.View
	Phase     Phase
	Active    bool
	Data      api.ViewData
	Err       error
	UpdatedAt time.Time
	Seq       uint64 // 已应用的加载序号
}

// Loaded 是否有可展示的数据（即使当前处于 Error 或 Loading）
func (s ViewState) Loaded() bool { return s.Data != nil }

// Level 通知级别
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification 非阻塞的用户提示
type Notification struct {
	ID      string
	Level   Level
	View    api.View
	Message string
	Time    time.Time
}

// PendingAction 等待确认的操作：NoPending 或 ConfirmPending
type PendingAction interface {
	isPending()
}

// NoPending 没有等待确认的操作
type NoPending struct{}

// ConfirmPending 一个等待用户确认的操作
type ConfirmPending struct {
	Action api.Action
	Prompt string
}

func (NoPending) isPending()      {}
func (ConfirmPending) isPending() {}

// Snapshot 整个看板状态的一致副本
type Snapshot struct {
	Profile       api.Profile
	Active        api.View
	Views         map[api.View]ViewState
	Notifications []Notification
	Pending       PendingAction
	Closed        bool
}

// viewSlot 容器内部的可变状态
type viewSlot struct {
	phase     Phase
	data      api.ViewData
	err       error
	updatedAt time.Time
	issued    uint64
	applied   uint64
	inflight  int
	polling   bool // 轮询发起的加载尚未结束
}

func (s *viewSlot) settledPhase() Phase {
	switch {
	case s.inflight > 0:
		return PhaseLoading
	case s.err != nil:
		return PhaseError
	case s.data != nil:
		return PhaseLoaded
	default:
		return PhaseIdle
	}
}
