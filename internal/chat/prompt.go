package chat

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are Investory's tutor, a patient guide for beginners learning how the stock market works.
Explain ideas in plain language with small concrete examples. Keep answers short.
Never recommend buying or selling a specific security and never promise returns.
If a question is unrelated to investing or personal finance, gently steer back.`

// Learner is what the tutor knows about the person asking.
type Learner struct {
	CurrentLevel int
	LevelTitle   string
	Balance      int
	Badges       []string
}

func buildSystemPrompt(l *Learner) string {
	if l == nil {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nLearner context:\n")
	if l.LevelTitle != "" {
		fmt.Fprintf(&b, "- Working on level %d: %s\n", l.CurrentLevel, l.LevelTitle)
	} else {
		fmt.Fprintf(&b, "- Current level: %d\n", l.CurrentLevel)
	}
	fmt.Fprintf(&b, "- Virtual balance: %d\n", l.Balance)
	if len(l.Badges) > 0 {
		fmt.Fprintf(&b, "- Badges: %s\n", strings.Join(l.Badges, ", "))
	}
	b.WriteString("Pitch explanations at this learner's level.")
	return b.String()
}
