package agent

import "github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"

// Decision is the next step after a model reply.
type Decision string

const (
	DecisionTools   Decision = "tools"
	DecisionCompact Decision = "compact"
	DecisionEnd     Decision = "end"
)

// Route decides what follows the latest message. Pending tool calls always
// win; otherwise trigger decides between post-turn compaction and the end of
// the turn. A nil trigger never compacts.
func Route(log conversation.Log, trigger func(conversation.Log) bool) Decision {
	last, ok := log.Last()
	if !ok {
		return DecisionEnd
	}
	if last.HasToolCalls() {
		return DecisionTools
	}
	if trigger != nil && trigger(log) {
		return DecisionCompact
	}
	return DecisionEnd
}
