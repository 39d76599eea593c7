package conversation

import (
	"strings"

	"github.com/BaSui01/liminal/types"
)

// BranchContext describes the branch a conversation belongs to, as seen from
// its latest indicator.
type BranchContext struct {
	Kind           BranchKind `json:"type,omitempty"`
	Anchor         string     `json:"anchor_text,omitempty"`
	MarkerIndex    int        `json:"marker_index"`
	ResponsesSince int        `json:"responses_since_marker"`
}

// InBranch reports whether the context is a rabbithole or a fork.
func (bc BranchContext) InBranch() bool {
	return bc.Kind.Valid()
}

// LatestIndicatorIndex returns the position of the most recent branch
// indicator, or -1 when there is none.
func LatestIndicatorIndex(msgs []types.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsBranchIndicator() {
			return i
		}
	}
	return -1
}

// CountResponsesSince counts assistant messages strictly after markerIndex.
// A negative marker counts the whole conversation.
func CountResponsesSince(msgs []types.Message, markerIndex int) int {
	n := 0
	for i := markerIndex + 1; i < len(msgs); i++ {
		if i >= 0 && msgs[i].Role == types.RoleAssistant {
			n++
		}
	}
	return n
}

// ParseIndicator recovers the branch kind and anchor text from an indicator.
func ParseIndicator(m types.Message) (BranchKind, string, bool) {
	if !m.IsBranchIndicator() {
		return KindNone, "", false
	}
	text := m.Content.PlainText()

	var kind BranchKind
	switch {
	case strings.HasPrefix(strings.TrimSpace(text), strings.TrimSpace(rabbitholePrefix)):
		kind = KindRabbithole
	case strings.HasPrefix(strings.TrimSpace(text), strings.TrimSpace(forkPrefix)):
		kind = KindFork
	default:
		return KindNone, "", false
	}

	// the anchor sits between the first pair of double quotes
	fields := strings.Split(text, `"`)
	if len(fields) < 2 {
		return kind, "", true
	}
	return kind, fields[1], true
}

// DetectBranchContext reads the branch context off the latest indicator.
func DetectBranchContext(msgs []types.Message) BranchContext {
	idx := LatestIndicatorIndex(msgs)
	bc := BranchContext{MarkerIndex: idx, ResponsesSince: CountResponsesSince(msgs, idx)}
	if idx < 0 {
		return bc
	}
	if kind, anchor, ok := ParseIndicator(msgs[idx]); ok {
		bc.Kind = kind
		bc.Anchor = anchor
	}
	return bc
}
