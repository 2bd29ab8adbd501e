package compaction

import (
	"errors"
	"fmt"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

var (
	// ErrUnsupportedUpdate is returned when a policy's reducer receives an
	// update variant it does not handle. It signals an integration bug.
	ErrUnsupportedUpdate = errors.New("unsupported update shape")

	// ErrCompactionInvariant is returned when a policy cannot produce a valid
	// log, e.g. no anchored suffix exists or a trim would empty the log.
	ErrCompactionInvariant = errors.New("compaction invariant violated")

	// ErrUnknownMessage is returned when Remove names an ID not in the log.
	ErrUnknownMessage = errors.New("unknown message id")

	// ErrDuplicateMessage is returned when Append carries an ID already present.
	ErrDuplicateMessage = errors.New("duplicate message id")
)

// Update is a change request applied to a log by a policy's reducer.
// The set of variants is closed: Append, Remove, Replace and TrimToCount.
type Update interface {
	isUpdate()
}

// Append adds messages to the end of the log. Messages without an ID get one.
type Append struct {
	Messages []conversation.Message
}

// Remove deletes the messages with the given IDs.
type Remove struct {
	IDs []string
}

// Replace swaps the whole log for Messages.
type Replace struct {
	Messages []conversation.Message
}

// TrimToCount keeps only the last N messages.
type TrimToCount struct {
	N int
}

func (Append) isUpdate()      {}
func (Remove) isUpdate()      {}
func (Replace) isUpdate()     {}
func (TrimToCount) isUpdate() {}

// Describe returns a short human-readable label for u, used in logs and events.
func Describe(u Update) string {
	switch u := u.(type) {
	case Append:
		return fmt.Sprintf("append(%d)", len(u.Messages))
	case Remove:
		return fmt.Sprintf("remove(%d)", len(u.IDs))
	case Replace:
		return fmt.Sprintf("replace(%d)", len(u.Messages))
	case TrimToCount:
		return fmt.Sprintf("trim_to_count(%d)", u.N)
	case nil:
		return "none"
	default:
		return fmt.Sprintf("%T", u)
	}
}

// reduce is the reducer shared by every policy except count_trim.
func reduce(log conversation.Log, u Update) (conversation.Log, error) {
	switch u := u.(type) {
	case Append:
		return appendMessages(log, u.Messages)
	case Remove:
		return removeMessages(log, u.IDs)
	case Replace:
		return replaceMessages(u.Messages), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUpdate, Describe(u))
	}
}

func appendMessages(log conversation.Log, msgs []conversation.Message) (conversation.Log, error) {
	out := make(conversation.Log, 0, len(log)+len(msgs))
	out = append(out, log.Clone()...)
	seen := make(map[string]struct{}, len(out)+len(msgs))
	for _, m := range out {
		seen[m.ID] = struct{}{}
	}
	for _, m := range msgs {
		m = m.Clone().WithID()
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMessage, m.ID)
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

func removeMessages(log conversation.Log, ids []string) (conversation.Log, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if log.Index(id) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
		}
		drop[id] = struct{}{}
	}
	out := make(conversation.Log, 0, len(log))
	for _, m := range log {
		if _, ok := drop[m.ID]; ok {
			continue
		}
		out = append(out, m.Clone())
	}
	return out, nil
}

func replaceMessages(msgs []conversation.Message) conversation.Log {
	out := make(conversation.Log, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone().WithID()
	}
	return out
}

func keepLast(log conversation.Log, n int) conversation.Log {
	if len(log) <= n {
		return log
	}
	return log[len(log)-n:]
}
