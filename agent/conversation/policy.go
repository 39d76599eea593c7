package conversation

import "fmt"

const (
	// rabbitholeOverrideTurns is how many responses after the marker keep the override.
	rabbitholeOverrideTurns = 2
	forkOverrideTurns       = 1
)

// RabbitholePrompt is the system directive used early in a rabbithole.
func RabbitholePrompt(anchor string) string {
	return fmt.Sprintf("You are interacting with other AIs. IMPORTANT: Focus this response specifically on "+
		"exploring and expanding upon the concept of '%s' in depth. Discuss the most interesting aspects or "+
		"connections related to this concept while maintaining the tone of the conversation. "+
		"No numbered lists or headings.", anchor)
}

// ForkPrompt is the system directive used for the first fork response.
func ForkPrompt(anchor string) string {
	return fmt.Sprintf("The conversation forks from '%s'. Continue naturally from this point.", anchor)
}

// ResolveSystemPrompt picks the effective system prompt for one participant.
// Branch directives replace the configured prompt entirely while the branch is
// young: the first two responses of a rabbithole, the first of a fork.
func ResolveSystemPrompt(configured string, bc BranchContext) string {
	switch bc.Kind {
	case KindRabbithole:
		if bc.ResponsesSince < rabbitholeOverrideTurns {
			return RabbitholePrompt(bc.Anchor)
		}
	case KindFork:
		if bc.ResponsesSince < forkOverrideTurns {
			return ForkPrompt(bc.Anchor)
		}
	}
	return configured
}

// Overridden reports whether ResolveSystemPrompt would substitute a directive.
func Overridden(bc BranchContext) bool {
	switch bc.Kind {
	case KindRabbithole:
		return bc.ResponsesSince < rabbitholeOverrideTurns
	case KindFork:
		return bc.ResponsesSince < forkOverrideTurns
	}
	return false
}
