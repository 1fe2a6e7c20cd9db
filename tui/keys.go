package tui

// Action 是一次按键对应的会话操作
type Action int

const (
	ActionNone Action = iota
	ActionLabel
	ActionAdvance
	ActionRetreat
	ActionFinish
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionLabel:
		return "label"
	case ActionAdvance:
		return "advance"
	case ActionRetreat:
		return "retreat"
	case ActionFinish:
		return "finish"
	case ActionQuit:
		return "quit"
	default:
		return "none"
	}
}

// KeyAction 把按键映射为会话操作。ActionLabel 时同时返回标注 tag。
// 未映射的按键返回 ActionNone，调用方直接忽略。
func KeyAction(key string) (Action, string) {
	switch key {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9", "d":
		return ActionLabel, key
	case " ", "space":
		return ActionLabel, "1"
	case "right", "n":
		return ActionAdvance, ""
	case "left", "p":
		return ActionRetreat, ""
	case "x":
		return ActionFinish, ""
	case "ctrl+c", "esc":
		return ActionQuit, ""
	}
	return ActionNone, ""
}
