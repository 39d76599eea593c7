package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/liminal/types"
)

func TestResolveSystemPrompt_Table(t *testing.T) {
	tests := []struct {
		name      string
		bc        BranchContext
		want      string
		overrides bool
	}{
		{"main", BranchContext{}, "configured", false},
		{"rabbithole first", BranchContext{Kind: KindRabbithole, Anchor: "tides"}, RabbitholePrompt("tides"), true},
		{"rabbithole second", BranchContext{Kind: KindRabbithole, Anchor: "tides", ResponsesSince: 1}, RabbitholePrompt("tides"), true},
		{"rabbithole third", BranchContext{Kind: KindRabbithole, Anchor: "tides", ResponsesSince: 2}, "configured", false},
		{"fork first", BranchContext{Kind: KindFork, Anchor: "door"}, ForkPrompt("door"), true},
		{"fork second", BranchContext{Kind: KindFork, Anchor: "door", ResponsesSince: 1}, "configured", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSystemPrompt("configured", tt.bc))
			assert.Equal(t, tt.overrides, Overridden(tt.bc))
		})
	}
}

func TestDetectBranchContext(t *testing.T) {
	msgs := []types.Message{
		types.NewUserMessage("q"),
		IndicatorMessage(KindRabbithole, "old"),
		types.NewAssistantMessage("a", "AI-1", "m"),
		IndicatorMessage(KindFork, "new anchor"),
		types.NewAssistantMessage("b", "AI-1", "m"),
	}
	bc := DetectBranchContext(msgs)
	assert.Equal(t, KindFork, bc.Kind)
	assert.Equal(t, "new anchor", bc.Anchor)
	assert.Equal(t, 3, bc.MarkerIndex)
	assert.Equal(t, 1, bc.ResponsesSince)
	assert.True(t, bc.InBranch())

	none := DetectBranchContext([]types.Message{types.NewAssistantMessage("a", "AI-1", "m")})
	assert.False(t, none.InBranch())
	assert.Equal(t, -1, none.MarkerIndex)
	assert.Equal(t, 1, none.ResponsesSince)
}

func TestParseIndicator(t *testing.T) {
	kind, anchor, ok := ParseIndicator(IndicatorMessage(KindRabbithole, "x"))
	assert.True(t, ok)
	assert.Equal(t, KindRabbithole, kind)
	assert.Equal(t, "x", anchor)

	_, _, ok = ParseIndicator(types.NewSystemMessage(`Rabbitholing down: "x"`))
	assert.False(t, ok, "plain system messages are not indicators")
}
