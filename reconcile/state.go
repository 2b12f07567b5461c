package reconcile

import "fmt"

// State 轮询会话状态机状态。
type State string

const (
	StateIdle     State = "IDLE"     // 启动延迟中，尚未发起首次查询
	StateQuerying State = "QUERYING" // 查询进行中，同一时刻至多一个在途请求
	StateWaiting  State = "WAITING"  // 等待下一次查询，且仅调度一个后续计时器
	StateDone     State = "DONE"     // 终态，所有计时器已取消，不再迁移
)

type stateTransition struct {
	From State
	To   State
}

// 所有合法的状态迁移。DONE 是吸收态：任何状态都可因终态归类
// 或取消而进入，进入后没有出边。
var legalTransitions = map[stateTransition]bool{
	{StateIdle, StateQuerying}: true,
	{StateIdle, StateDone}:     true, // 缺少引用号或启动前被取消

	{StateQuerying, StateWaiting}: true,
	{StateQuerying, StateDone}:    true,

	{StateWaiting, StateQuerying}: true,
	{StateWaiting, StateDone}:     true,
}

// ValidateTransition 校验状态迁移是否合法。相同状态允许（幂等性）。
func ValidateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if !legalTransitions[stateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal session transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态。
func IsFinalState(s State) bool {
	return s == StateDone
}
