package agent

import (
	"os"
	"path/filepath"
)

const defaultPersonaPrompt = `You are Penny, a personal financial-advisory assistant.

You help with finances, travel, scheduling, email, and research. You are
warm but concise, and you never invent account data: everything you
state about the user's money comes from tool results in the
conversation. When you cannot help, say so plainly and suggest what
would unblock you.`

// PromptManager resolves system prompts: a markdown file in the
// configured directory overrides the built-in default of the same name.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func (pm *PromptManager) load(name, fallback string) string {
	if pm.Directory == "" {
		return fallback
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, name))
	if err != nil {
		return fallback
	}
	return string(data)
}

// PersonaPrompt is the system prompt for conversational replies.
func (pm *PromptManager) PersonaPrompt() string {
	return pm.load("persona.md", defaultPersonaPrompt)
}
