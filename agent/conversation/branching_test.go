package conversation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/liminal/types"
)

func seed(t *testing.T, tree *Tree, msgs ...types.Message) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, tree.Append(MainBranchID, m))
	}
}

func contents(msgs []types.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content.PlainText()
	}
	return out
}

func TestCreateBranch_RabbitholeCopiesEverything(t *testing.T) {
	tree := NewTree(zaptest.NewLogger(t))
	seed(t, tree,
		types.NewUserMessage("x"),
		types.NewAssistantMessage("y", "AI-1", "GPT 4.1"),
	)

	id, err := tree.CreateBranch(MainBranchID, KindRabbithole, "x")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "rabbithole_"))
	assert.Equal(t, id, tree.Active())

	b, err := tree.Get(id)
	require.NoError(t, err)
	require.Len(t, b.Conversation, 3)
	assert.Equal(t, []string{"x", "y", `Rabbitholing down: "x"`}, contents(b.Conversation))

	marker := b.Conversation[2]
	assert.Equal(t, types.RoleSystem, marker.Role)
	assert.True(t, marker.IsBranchIndicator())
	assert.Equal(t, MainBranchID, b.ParentID)
	assert.Equal(t, KindRabbithole, b.Kind)
}

func TestCreateBranch_ForkTruncatesAtAnchor(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree, types.NewUserMessage("a b c"))

	id, err := tree.CreateBranch(MainBranchID, KindFork, "b")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "fork_"))

	msgs, err := tree.Snapshot(id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a b", msgs[0].Content.Text)
	assert.Equal(t, `Forking off: "b"`, msgs[1].Content.Text)

	// the parent is untouched
	parent, err := tree.Snapshot(MainBranchID)
	require.NoError(t, err)
	assert.Equal(t, "a b c", parent[0].Content.Text)
}

func TestCreateBranch_ForkKeepsLaterSystemMessages(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree,
		types.NewUserMessage("start here"),
		types.NewAssistantMessage("the anchor lives here and continues", "AI-1", "m1"),
		types.NewAssistantMessage("later reply", "AI-2", "m2"),
		types.NewSystemMessage("Error: timeout"),
	)

	id, err := tree.CreateBranch(MainBranchID, KindFork, "anchor lives")
	require.NoError(t, err)

	msgs, err := tree.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"start here",
		"the anchor lives",
		"Error: timeout",
		`Forking off: "anchor lives"`,
	}, contents(msgs))
}

func TestCreateBranch_ForkAnchorMissingCopiesAll(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree,
		types.NewUserMessage("first line"),
		types.NewAssistantMessage("second line", "AI-1", "m1"),
	)

	// spans two messages, so no single message contains it
	id, err := tree.CreateBranch(MainBranchID, KindFork, "line\nsecond")
	require.NoError(t, err)

	msgs, err := tree.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"first line", "second line", "Forking off: \"line\nsecond\""}, contents(msgs))
}

func TestCreateBranch_ForkTruncatesListContent(t *testing.T) {
	tree := NewTree(nil)
	msg := types.Message{
		Role: types.RoleUser,
		Content: types.Parts(
			types.ImagePart("image/png", "AAAA"),
			types.TextPart("describe the red door please"),
			types.TextPart("and more"),
		),
	}
	seed(t, tree, msg)

	id, err := tree.CreateBranch(MainBranchID, KindFork, "red door")
	require.NoError(t, err)

	msgs, err := tree.Snapshot(id)
	require.NoError(t, err)
	parts := msgs[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, types.PartImage, parts[0].Type)
	assert.Equal(t, "describe the red door", parts[1].Text)
}

func TestCreateBranch_NestedBranchHasSingleMarker(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree, types.NewUserMessage("topic one"))

	first, err := tree.CreateBranch(MainBranchID, KindRabbithole, "topic")
	require.NoError(t, err)
	require.NoError(t, tree.Append(first, types.NewAssistantMessage("deep dive", "AI-1", "m1")))

	second, err := tree.CreateBranch(first, KindFork, "deep")
	require.NoError(t, err)

	msgs, err := tree.Snapshot(second)
	require.NoError(t, err)
	markers := 0
	for _, m := range msgs {
		if m.IsBranchIndicator() {
			markers++
		}
	}
	assert.Equal(t, 1, markers)
	assert.True(t, msgs[len(msgs)-1].IsBranchIndicator())
}

func TestCreateBranch_Errors(t *testing.T) {
	tree := NewTree(nil)

	_, err := tree.CreateBranch("nope", KindFork, "x")
	assert.True(t, types.IsCode(err, types.ErrBranchNotFound))

	_, err = tree.CreateBranch(MainBranchID, BranchKind("spiral"), "x")
	assert.True(t, types.IsCode(err, types.ErrMalformedInput))

	_, err = tree.CreateBranch(MainBranchID, KindFork, "  ")
	assert.True(t, types.IsCode(err, types.ErrMalformedInput))
}

func TestAppend_RejectsEmpty(t *testing.T) {
	tree := NewTree(nil)

	err := tree.Append(MainBranchID, types.NewUserMessage("  \n"))
	assert.True(t, types.IsCode(err, types.ErrEmptyContent))

	err = tree.Append(MainBranchID, types.Message{Role: types.RoleUser, Content: types.Parts()})
	assert.True(t, types.IsCode(err, types.ErrEmptyContent))

	msgs, _ := tree.Snapshot(MainBranchID)
	assert.Empty(t, msgs)
}

func TestAppendContinuation_SuppressesDuplicateTail(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree,
		types.NewAssistantMessage("I agree", "AI-1", "m1"),
		types.NewAssistantMessage("I agree", "AI-2", "m2"),
	)

	require.NoError(t, tree.AppendContinuation(MainBranchID, types.NewAssistantMessage("next", "AI-1", "m1")))

	msgs, _ := tree.Snapshot(MainBranchID)
	assert.Equal(t, []string{"I agree", "next"}, contents(msgs))
}

func TestDropDuplicateTail(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree, types.NewUserMessage("a"), types.NewUserMessage("b"))
	assert.False(t, tree.DropDuplicateTail(MainBranchID))

	seed(t, tree, types.NewUserMessage("b"))
	assert.True(t, tree.DropDuplicateTail(MainBranchID))
	assert.False(t, tree.DropDuplicateTail("missing"))

	msgs, _ := tree.Snapshot(MainBranchID)
	assert.Equal(t, []string{"a", "b"}, contents(msgs))
}

func TestSnapshotIsPrivateCopy(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree, types.Message{Role: types.RoleUser, Content: types.Parts(types.TextPart("hello"))})

	snap, err := tree.Snapshot(MainBranchID)
	require.NoError(t, err)
	snap[0].Content.Parts[0].Text = "mutated"

	again, _ := tree.Snapshot(MainBranchID)
	assert.Equal(t, "hello", again[0].Content.Parts[0].Text)
}

func TestResponsesSinceMarker(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree,
		types.NewUserMessage("q"),
		types.NewAssistantMessage("r1", "AI-1", "m"),
	)
	n, err := tree.ResponsesSinceMarker(MainBranchID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	id, err := tree.CreateBranch(MainBranchID, KindRabbithole, "q")
	require.NoError(t, err)
	n, _ = tree.ResponsesSinceMarker(id)
	assert.Equal(t, 0, n)

	require.NoError(t, tree.Append(id, types.NewUserMessage("q")))
	require.NoError(t, tree.Append(id, types.NewAssistantMessage("r2", "AI-1", "m")))
	require.NoError(t, tree.Append(id, types.NewAssistantMessage("r3", "AI-2", "m")))
	n, _ = tree.ResponsesSinceMarker(id)
	assert.Equal(t, 2, n)

	bc, err := tree.Context(id)
	require.NoError(t, err)
	assert.Equal(t, KindRabbithole, bc.Kind)
	assert.Equal(t, "q", bc.Anchor)
	assert.Equal(t, 2, bc.ResponsesSince)
}

func TestSetImagePath(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree,
		types.NewAssistantMessage("one", "AI-1", "m"),
		types.NewAssistantMessage("two", "AI-2", "m"),
		types.NewAssistantMessage("three", "AI-1", "m"),
	)

	assert.True(t, tree.SetImagePath(MainBranchID, "AI-1", "images/a.png"))
	assert.False(t, tree.SetImagePath(MainBranchID, "AI-9", "images/b.png"))

	msgs, _ := tree.Snapshot(MainBranchID)
	assert.Empty(t, msgs[0].GeneratedImagePath)
	assert.Equal(t, "images/a.png", msgs[2].GeneratedImagePath)
}

func TestVisibleAndBranches(t *testing.T) {
	tree := NewTree(nil)
	seed(t, tree, types.NewUserMessage("shown"), types.NewUserMessage("...").WithHidden(true))

	visible, err := tree.Visible(MainBranchID)
	require.NoError(t, err)
	assert.Equal(t, []string{"shown"}, contents(visible))

	id, err := tree.CreateBranch(MainBranchID, KindFork, "shown")
	require.NoError(t, err)

	list := tree.Branches()
	require.Len(t, list, 2)
	assert.Equal(t, MainBranchID, list[0].ID)
	assert.False(t, list[0].Active)
	assert.Equal(t, id, list[1].ID)
	assert.True(t, list[1].Active)

	tree.ReturnToMain()
	assert.Equal(t, MainBranchID, tree.Active())
	assert.Error(t, tree.SetActive("missing"))
	require.NoError(t, tree.SetActive(id))

	data, err := tree.Export()
	require.NoError(t, err)
	var exported struct {
		Active   string            `json:"active_branch"`
		Branches []json.RawMessage `json:"branches"`
	}
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Equal(t, id, exported.Active)
	assert.Len(t, exported.Branches, 2)
}
