// Package conversation provides the branching conversation tree, the message
// normalizer and the branch prompt policy.
package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/liminal/types"
)

// MainBranchID is the id of the implicit root conversation.
const MainBranchID = "main"

// BranchKind is the type of a branch. The main conversation has KindNone.
type BranchKind string

const (
	KindNone       BranchKind = ""
	KindRabbithole BranchKind = "rabbithole"
	KindFork       BranchKind = "fork"
)

// Valid reports whether k names a creatable branch type.
func (k BranchKind) Valid() bool {
	return k == KindRabbithole || k == KindFork
}

const (
	rabbitholePrefix = "Rabbitholing down: "
	forkPrefix       = "Forking off: "
)

// Branch is one conversation timeline.
type Branch struct {
	ID           string          `json:"id"`
	Kind         BranchKind      `json:"type,omitempty"`
	AnchorText   string          `json:"anchor_text,omitempty"`
	ParentID     string          `json:"parent_id,omitempty"`
	Conversation []types.Message `json:"conversation"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Summary is a lightweight view of a branch for listings.
type Summary struct {
	ID         string     `json:"id"`
	Kind       BranchKind `json:"type,omitempty"`
	AnchorText string     `json:"anchor_text,omitempty"`
	ParentID   string     `json:"parent_id,omitempty"`
	Messages   int        `json:"messages"`
	Responses  int        `json:"responses_since_marker"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Tree owns the branch map, rooted at the main conversation.
type Tree struct {
	mu       sync.RWMutex
	branches map[string]*Branch
	order    []string
	active   string
	logger   *zap.Logger
}

// NewTree creates a tree holding only an empty main conversation.
func NewTree(logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	main := &Branch{
		ID:           MainBranchID,
		Conversation: []types.Message{},
		CreatedAt:    time.Now(),
	}
	return &Tree{
		branches: map[string]*Branch{MainBranchID: main},
		order:    []string{MainBranchID},
		active:   MainBranchID,
		logger:   logger.With(zap.String("component", "conversation_tree")),
	}
}

// IndicatorMessage builds the marker appended to a new branch.
func IndicatorMessage(kind BranchKind, anchor string) types.Message {
	prefix := rabbitholePrefix
	if kind == KindFork {
		prefix = forkPrefix
	}
	m := types.NewSystemMessage(prefix + `"` + anchor + `"`)
	m.Type = types.TypeBranchIndicator
	return m
}

// CreateBranch creates a rabbithole or fork from parentID and makes it active.
func (t *Tree) CreateBranch(parentID string, kind BranchKind, anchor string) (string, error) {
	if !kind.Valid() {
		return "", types.NewError(types.ErrMalformedInput, fmt.Sprintf("unknown branch type %q", kind))
	}
	if strings.TrimSpace(anchor) == "" {
		return "", types.NewError(types.ErrMalformedInput, "anchor text is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.branches[parentID]
	if !ok {
		return "", types.NewError(types.ErrBranchNotFound, fmt.Sprintf("branch %s not found", parentID))
	}

	var msgs []types.Message
	switch kind {
	case KindRabbithole:
		msgs = copyWithoutIndicators(parent.Conversation)
	case KindFork:
		var found bool
		msgs, found = forkPrefixOf(parent.Conversation, anchor)
		if !found {
			t.logger.Info("fork anchor not found in a single message, copying full context",
				zap.String("parent", parentID),
				zap.String("code", string(types.ErrBranchAnchorNotFound)))
		}
	}
	msgs = append(msgs, IndicatorMessage(kind, anchor))

	id := fmt.Sprintf("%s_%s", kind, uuid.NewString())
	t.branches[id] = &Branch{
		ID:           id,
		Kind:         kind,
		AnchorText:   anchor,
		ParentID:     parentID,
		Conversation: msgs,
		CreatedAt:    time.Now(),
	}
	t.order = append(t.order, id)
	t.active = id

	t.logger.Debug("branch created",
		zap.String("branch", id),
		zap.String("parent", parentID),
		zap.Int("messages", len(msgs)))
	return id, nil
}

func copyWithoutIndicators(src []types.Message) []types.Message {
	out := make([]types.Message, 0, len(src)+1)
	for _, m := range src {
		if m.IsBranchIndicator() {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

// forkPrefixOf returns the history up to the first user or assistant message
// containing anchor, truncated right after the anchor. Non-indicator system
// messages are kept wherever they sit. found is false when no single message
// contains the anchor, in which case the full history is returned.
func forkPrefixOf(src []types.Message, anchor string) ([]types.Message, bool) {
	idx := -1
	var truncated types.Content
	for i, m := range src {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			continue
		}
		if c, ok := truncateAtAnchor(m.Content, anchor); ok {
			idx = i
			truncated = c
			break
		}
	}
	if idx < 0 {
		return copyWithoutIndicators(src), false
	}

	out := make([]types.Message, 0, idx+2)
	for i, m := range src {
		if m.IsBranchIndicator() {
			continue
		}
		switch {
		case i < idx:
			out = append(out, m.Clone())
		case i == idx:
			out = append(out, m.Clone().WithContent(truncated))
		case m.Role == types.RoleSystem:
			out = append(out, m.Clone())
		}
	}
	return out, true
}

func truncateAtAnchor(c types.Content, anchor string) (types.Content, bool) {
	if !c.IsList() {
		pos := strings.Index(c.Text, anchor)
		if pos < 0 {
			return c, false
		}
		return types.Text(c.Text[:pos+len(anchor)]), true
	}
	for i, p := range c.Parts {
		if p.Type != types.PartText {
			continue
		}
		pos := strings.Index(p.Text, anchor)
		if pos < 0 {
			continue
		}
		parts := make([]types.ContentPart, i+1)
		copy(parts, c.Parts[:i+1])
		parts[i].Text = p.Text[:pos+len(anchor)]
		return types.Parts(parts...), true
	}
	return c, false
}

func (t *Tree) branchLocked(id string) (*Branch, error) {
	b, ok := t.branches[id]
	if !ok {
		return nil, types.NewError(types.ErrBranchNotFound, fmt.Sprintf("branch %s not found", id))
	}
	return b, nil
}

// Append adds msg to the branch. Empty content is rejected.
func (t *Tree) Append(branchID string, msg types.Message) error {
	return t.appendMessage(branchID, msg, false)
}

// AppendContinuation appends a message produced by automatic continuation.
// When the two most recent messages carry identical content the later one is
// dropped first.
func (t *Tree) AppendContinuation(branchID string, msg types.Message) error {
	return t.appendMessage(branchID, msg, true)
}

func (t *Tree) appendMessage(branchID string, msg types.Message, dedup bool) error {
	if msg.Content.IsEmpty() {
		return types.NewError(types.ErrEmptyContent, "message content is empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b, err := t.branchLocked(branchID)
	if err != nil {
		return err
	}
	if dedup {
		dropDuplicateTail(b)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.Conversation = append(b.Conversation, msg.Clone())
	return nil
}

// DropDuplicateTail removes the last message when it repeats the one before it.
func (t *Tree) DropDuplicateTail(branchID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, err := t.branchLocked(branchID)
	if err != nil {
		return false
	}
	return dropDuplicateTail(b)
}

func dropDuplicateTail(b *Branch) bool {
	n := len(b.Conversation)
	if n < 2 || !b.Conversation[n-1].Content.Equal(b.Conversation[n-2].Content) {
		return false
	}
	b.Conversation = b.Conversation[:n-1]
	return true
}

// Snapshot returns a private deep copy of the branch conversation.
func (t *Tree) Snapshot(branchID string) ([]types.Message, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, err := t.branchLocked(branchID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Message, len(b.Conversation))
	for i, m := range b.Conversation {
		out[i] = m.Clone()
	}
	return out, nil
}

// Visible returns the messages a display may show.
func (t *Tree) Visible(branchID string) ([]types.Message, error) {
	msgs, err := t.Snapshot(branchID)
	if err != nil {
		return nil, err
	}
	out := msgs[:0]
	for _, m := range msgs {
		if !m.Hidden {
			out = append(out, m)
		}
	}
	return out, nil
}

// Get returns a copy of the branch metadata and conversation.
func (t *Tree) Get(branchID string) (*Branch, error) {
	msgs, err := t.Snapshot(branchID)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	b := *t.branches[branchID]
	b.Conversation = msgs
	return &b, nil
}

// Context derives the branch context used by the prompt policy.
func (t *Tree) Context(branchID string) (BranchContext, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, err := t.branchLocked(branchID)
	if err != nil {
		return BranchContext{}, err
	}
	bc := DetectBranchContext(b.Conversation)
	if b.Kind.Valid() {
		bc.Kind = b.Kind
		bc.Anchor = b.AnchorText
	}
	return bc, nil
}

// ResponsesSinceMarker counts the assistant messages after the branch marker.
func (t *Tree) ResponsesSinceMarker(branchID string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, err := t.branchLocked(branchID)
	if err != nil {
		return 0, err
	}
	return CountResponsesSince(b.Conversation, LatestIndicatorIndex(b.Conversation)), nil
}

// SetImagePath attaches path to the most recent assistant message from aiName.
func (t *Tree) SetImagePath(branchID, aiName, path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, err := t.branchLocked(branchID)
	if err != nil {
		return false
	}
	for i := len(b.Conversation) - 1; i >= 0; i-- {
		m := &b.Conversation[i]
		if m.Role == types.RoleAssistant && m.AIName == aiName {
			m.GeneratedImagePath = path
			return true
		}
	}
	return false
}

// Active returns the active branch id.
func (t *Tree) Active() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// SetActive switches the active branch.
func (t *Tree) SetActive(branchID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.branchLocked(branchID); err != nil {
		return err
	}
	t.active = branchID
	return nil
}

// ReturnToMain makes the main conversation active again.
func (t *Tree) ReturnToMain() {
	t.mu.Lock()
	t.active = MainBranchID
	t.mu.Unlock()
}

// Branches lists every branch in creation order.
func (t *Tree) Branches() []Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Summary, 0, len(t.order))
	for _, id := range t.order {
		b := t.branches[id]
		out = append(out, Summary{
			ID:         b.ID,
			Kind:       b.Kind,
			AnchorText: b.AnchorText,
			ParentID:   b.ParentID,
			Messages:   len(b.Conversation),
			Responses:  CountResponsesSince(b.Conversation, LatestIndicatorIndex(b.Conversation)),
			Active:     id == t.active,
			CreatedAt:  b.CreatedAt,
		})
	}
	return out
}

// Export exports the tree to JSON.
func (t *Tree) Export() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	branches := make([]*Branch, 0, len(t.order))
	for _, id := range t.order {
		branches = append(branches, t.branches[id])
	}
	return json.Marshal(struct {
		Active   string    `json:"active_branch"`
		Branches []*Branch `json:"branches"`
	}{t.active, branches})
}
