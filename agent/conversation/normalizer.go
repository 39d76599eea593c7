package conversation

import (
	"fmt"
	"strings"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/types"
)

const (
	// hidden messages whose text contains this are connector placeholders
	connectorMarker = "connect"

	fallbackContinuation = "Let's continue our conversation."
	defaultSpeaker       = "User"
)

// IdentityLine names the participant and its model at the top of the system turn.
func IdentityLine(p llm.Participant) string {
	return fmt.Sprintf("You are %s (%s).\n\n", p.Name, p.ModelDisplay)
}

// RabbitholeContinuation is the synthesized user turn that keeps a rabbithole going.
func RabbitholeContinuation(anchor string) string {
	return fmt.Sprintf("Please explore the concept of '%s' in depth. What are the most interesting aspects "+
		"or connections related to this concept?", anchor)
}

// ForkContinuation is the synthesized user turn that keeps a fork going.
func ForkContinuation(anchor string) string {
	return fmt.Sprintf("Continue on naturally from the point about '%s' without including this text.", anchor)
}

// Normalize builds the provider request participant p sends for msgs.
// The result always ends on a user turn.
func Normalize(p llm.Participant, msgs []types.Message, resolvedPrompt string) *llm.ChatRequest {
	retained := Retain(msgs)

	turns := make([]types.Message, 0, len(retained)+1)
	for _, m := range retained {
		turns = append(turns, asTurn(p.Name, m))
	}
	if len(turns) == 0 || turns[len(turns)-1].Role == types.RoleAssistant {
		turns = append(turns, continuationTurn(p.Name, DetectBranchContext(msgs), retained))
	}

	return &llm.ChatRequest{
		Model:        p.ModelID,
		ModelDisplay: p.ModelDisplay,
		Participant:  p.Name,
		System:       IdentityLine(p) + resolvedPrompt,
		Messages:     turns,
	}
}

// Retain filters a conversation down to the messages a provider should see.
func Retain(msgs []types.Message) []types.Message {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Hidden && strings.Contains(strings.ToLower(m.Content.PlainText()), connectorMarker) {
			continue
		}
		if m.Content.IsEmpty() || m.Role == types.RoleSystem {
			continue
		}
		key := contentKey(m.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

func contentKey(c types.Content) string {
	if !c.IsList() {
		return "t\x00" + c.Text
	}
	var b strings.Builder
	b.WriteString("l")
	for _, p := range c.Parts {
		b.WriteString("\x00")
		b.WriteString(string(p.Type))
		b.WriteString("\x01")
		b.WriteString(p.Text)
		b.WriteString("\x01")
		b.WriteString(p.MediaType)
		b.WriteString("\x01")
		b.WriteString(p.Data)
	}
	return b.String()
}

// asTurn maps a stored message onto a turn from self's point of view.
func asTurn(self string, m types.Message) types.Message {
	if m.AIName == self {
		return types.Message{Role: types.RoleAssistant, Content: m.Content.Clone()}
	}
	return types.Message{Role: types.RoleUser, Content: labeled(speakerOf(m), m.Content)}
}

func speakerOf(m types.Message) string {
	switch {
	case m.Model != "":
		return m.Model
	case m.AIName != "":
		return m.AIName
	default:
		return defaultSpeaker
	}
}

// labeled prefixes the speaker onto the text, or onto the first text part of
// list content. Other parts keep their relative order.
func labeled(speaker string, c types.Content) types.Content {
	label := "[" + speaker + "]: "
	if !c.IsList() {
		return types.Text(label + c.Text)
	}
	out := c.Clone()
	for i := range out.Parts {
		if out.Parts[i].Type == types.PartText {
			out.Parts[i].Text = label + out.Parts[i].Text
			break
		}
	}
	return out
}

func continuationTurn(self string, bc BranchContext, retained []types.Message) types.Message {
	switch bc.Kind {
	case KindRabbithole:
		return types.Message{Role: types.RoleUser, Content: types.Text(RabbitholeContinuation(bc.Anchor))}
	case KindFork:
		return types.Message{Role: types.RoleUser, Content: types.Text(ForkContinuation(bc.Anchor))}
	}
	for i := len(retained) - 1; i >= 0; i-- {
		if retained[i].AIName != self {
			return types.Message{Role: types.RoleUser, Content: retained[i].Content.Clone()}
		}
	}
	return types.Message{Role: types.RoleUser, Content: types.Text(fallbackContinuation)}
}

// BuildRequest resolves the policy prompt for p against the conversation and
// normalizes it in one step.
func BuildRequest(p llm.Participant, msgs []types.Message, bc BranchContext) *llm.ChatRequest {
	return Normalize(p, msgs, ResolveSystemPrompt(p.SystemPrompt, bc))
}
