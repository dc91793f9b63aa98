package model

// MaxHistoryTurns is the hard cap on persisted conversation turns per user.
// History is trimmed to the most recent MaxHistoryTurns entries on every save.
const MaxHistoryTurns = 20

// Role of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry in a user's conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the persisted per-user conversational state.
type Context struct {
	History []Turn `json:"history"`
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{History: []Turn{}}
}

// Append adds a turn to the history.
func (c *Context) Append(role, content string) {
	c.History = append(c.History, Turn{Role: role, Content: content})
}

// Trim drops all but the most recent MaxHistoryTurns turns.
func (c *Context) Trim() {
	if len(c.History) > MaxHistoryTurns {
		c.History = c.History[len(c.History)-MaxHistoryTurns:]
	}
}
