package model

import "strings"

// Intent 是路由器对查询的分类结果。
type Intent int

const (
	IntentUnrecognized Intent = iota
	IntentSummary
	IntentContextual
	IntentSimple
)

// FallbackAnswer 是无法识别意图时的固定回复。
const FallbackAnswer = "I'm not sure how to help with that."

var intentMarkers = map[string]Intent{
	"(1)": IntentSummary,
	"(2)": IntentContextual,
	"(3)": IntentSimple,
}

// ParseIntent 取回复去除空白后的第一个词，映射到意图标记。
func ParseIntent(reply string) Intent {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return IntentUnrecognized
	}
	if intent, ok := intentMarkers[fields[0]]; ok {
		return intent
	}
	return IntentUnrecognized
}

func (i Intent) String() string {
	switch i {
	case IntentSummary:
		return "summary"
	case IntentContextual:
		return "contextual"
	case IntentSimple:
		return "simple"
	default:
		return "unrecognized"
	}
}

// ExecutionState 是一次查询的生命周期状态。
type ExecutionState int

const (
	StateRouting ExecutionState = iota
	StateExecuting
	StateAggregating
	StatePersisted
	StateFailed
)

func (s ExecutionState) String() string {
	switch s {
	case StateRouting:
		return "ROUTING"
	case StateExecuting:
		return "EXECUTING"
	case StateAggregating:
		return "AGGREGATING"
	case StatePersisted:
		return "PERSISTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal 判断状态是否为终态。
func (s ExecutionState) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}

// QueryContext 是单次请求的临时上下文，请求结束即丢弃。
type QueryContext struct {
	ChatID        uint
	Query         string
	DocumentNames []string
	Intent        Intent
	State         ExecutionState
}
