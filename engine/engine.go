package engine

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkoval/tabletalk/crud"
	"github.com/dkoval/tabletalk/log"
	"github.com/dkoval/tabletalk/model"
	"github.com/dkoval/tabletalk/store"
	"github.com/sashabaranov/go-openai"
)

//go:embed system.md
var systemPrompt string

//go:embed report.md
var reportPrompt string

// MaxToolInvocations is the hard cap on tool calls per conversational turn.
// It bounds runaway call cycles regardless of model intent.
const MaxToolInvocations = 6

// noToolsNote is folded into the transcripts when a model turn carries no
// tool calls. It is a nudge, not an error.
const noToolsNote = "NO TOOLS WERE USED."

// Engine drives the conversation loop: it loads the user's bounded context,
// exchanges turns with the LLM, routes tool calls through the dispatcher and
// produces a final summarized reply.
type Engine struct {
	store      store.Store
	crud       *crud.Engine
	dispatcher *Dispatcher
	usage      *usageCounter

	llmClient LLMClient
	llmConfig LLMConfig

	// One mutex per user serializes turns; two loops racing on the same
	// context blob would lose updates.
	userLock map[int64]*sync.Mutex
	locksMu  sync.Mutex
}

// NewEngine creates an engine over the given store. Call UseLLMConfig
// before ProcessMessage.
func NewEngine(st store.Store) *Engine {
	crudEngine := crud.NewEngine(st)
	return &Engine{
		store:      st,
		crud:       crudEngine,
		dispatcher: NewDispatcher(crudEngine),
		usage:      newUsageCounter(),
		userLock:   make(map[int64]*sync.Mutex),
	}
}

// CRUD returns the underlying CRUD engine for direct use outside the
// conversation loop (registration, administrative listing).
func (e *Engine) CRUD() *crud.Engine {
	return e.crud
}

// UseLLMConfig configures the LLM client for the engine
func (e *Engine) UseLLMConfig(config LLMConfig) {
	e.llmClient = newLLMClient(config)
	e.llmConfig = config
}

// UseLLMClient installs a pre-built client. Used by tests and by callers
// bringing their own transport.
func (e *Engine) UseLLMClient(client LLMClient, modelName string) {
	e.llmClient = client
	e.llmConfig.Model = modelName
}

// ToolUsage returns per-operation invocation counts since process start.
func (e *Engine) ToolUsage() map[string]int {
	return e.usage.snapshot()
}

// getOrCreateLock gets or creates the mutex for a user
func (e *Engine) getOrCreateLock(userID int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	lock, exists := e.userLock[userID]
	if !exists {
		lock = &sync.Mutex{}
		e.userLock[userID] = lock
	}
	return lock
}

// ClearContext drops the user's persisted conversation history.
func (e *Engine) ClearContext(userID int64) error {
	lock := e.getOrCreateLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return e.store.SaveContext(userID, model.NewContext())
}

// ProcessMessage runs one full conversational turn for a user: persist the
// inbound message, loop with the model until it signals completion or the
// invocation cap is hit, then summarize and persist the reply.
//
// The ctx is honored at every model call, which is the loop's only
// suspension point; cancelling it aborts the turn.
func (e *Engine) ProcessMessage(ctx context.Context, userID int64, userMessage string) (string, error) {
	if e.llmClient == nil {
		return "", errors.New("LLM client is not configured. Call UseLLMConfig first")
	}

	lock := e.getOrCreateLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log.Log.Infof("[Engine] 🚀 Processing message | UserID: %d | Message length: %d chars", userID, len(userMessage))

	// Persist the inbound message before any model call so a crash
	// mid-loop does not lose it.
	convCtx, err := e.store.LoadContext(userID)
	if err != nil {
		return "", fmt.Errorf("failed to load context: %w", err)
	}
	convCtx.Append(model.RoleUser, userMessage)
	convCtx.Trim()
	if err := e.store.SaveContext(userID, convCtx); err != nil {
		return "", fmt.Errorf("failed to save context: %w", err)
	}

	// The working transcript goes back to the model each iteration; the
	// report transcript holds only this turn's activity and feeds the
	// final summarization call.
	working := e.buildMessages(convCtx)
	var report []openai.ChatCompletionMessage

	tools := toolCatalogue()
	invocations := 0
	running := true

	for running {
		resp, err := e.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    e.llmConfig.Model,
			Messages: working,
			Tools:    tools,
		})
		if err != nil {
			return "", formatLLMError(err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices in LLM response")
		}
		choice := resp.Choices[0]

		if len(choice.Message.ToolCalls) == 0 {
			// No tool calls is a nudge back to the loop, not an error.
			note := choice.Message.Content
			if note != "" {
				note += "\n"
			}
			note += noToolsNote
			entry := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: note,
			}
			working = append(working, entry)
			report = append(report, entry)
			continue
		}

		assistant := openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: choice.Message.ToolCalls,
		}
		working = append(working, assistant)
		report = append(report, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: choice.Message.Content,
		})

		for _, toolCall := range choice.Message.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				args = make(map[string]any)
			}

			name := toolCall.Function.Name
			op := ParseOp(name)
			e.usage.record(name)
			log.Log.Infof("[Engine] 🔧 Tool call | UserID: %d | Name: %s | Args: %s", userID, name, toolCall.Function.Arguments)

			keepGoing, result := e.dispatcher.Dispatch(op, args, userID)
			invocations++

			working = append(working, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       name,
				ToolCallID: toolCall.ID,
			})
			annotateLast(report, name, result)

			if !keepGoing {
				running = false
				break
			}
			if invocations >= MaxToolInvocations {
				log.Log.Warnf("[Engine] ⚠️  Tool invocation cap reached | UserID: %d | Cap: %d", userID, MaxToolInvocations)
				running = false
				break
			}
		}
	}

	reply, err := e.summarize(ctx, convCtx, report, invocations)
	if err != nil {
		return "", err
	}

	convCtx.Append(model.RoleAssistant, reply)
	convCtx.Trim()
	if err := e.store.SaveContext(userID, convCtx); err != nil {
		return "", fmt.Errorf("failed to save context: %w", err)
	}

	log.Log.Infof("[Engine] ✅ Message processed | UserID: %d | Tools used: %d | Reply length: %d chars",
		userID, invocations, len(reply))

	return reply, nil
}

// buildMessages assembles the working transcript from the system prompt and
// the user's trimmed history.
func (e *Engine) buildMessages(convCtx *model.Context) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(convCtx.History)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range convCtx.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	return messages
}

// annotateLast folds a tool result into the newest report entry so the
// summarization call sees operations next to their outcomes.
func annotateLast(report []openai.ChatCompletionMessage, name, result string) {
	if len(report) == 0 {
		return
	}
	last := &report[len(report)-1]
	if last.Content != "" {
		last.Content += "\n"
	}
	last.Content += fmt.Sprintf("%s: %s", name, result)
}

// summarize issues the final model call over the report transcript only and
// returns the user-facing reply.
func (e *Engine) summarize(ctx context.Context, convCtx *model.Context, report []openai.ChatCompletionMessage, invocations int) (string, error) {
	var lastUserMessage string
	for i := len(convCtx.History) - 1; i >= 0; i-- {
		if convCtx.History[i].Role == model.RoleUser {
			lastUserMessage = convCtx.History[i].Content
			break
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(report)+3)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: reportPrompt,
	})
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: lastUserMessage,
	})
	messages = append(messages, report...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: fmt.Sprintf("%d tools were used.", invocations),
	})

	resp, err := e.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.llmConfig.Model,
		Messages: messages,
	})
	if err != nil {
		return "", formatLLMError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return resp.Choices[0].Message.Content, nil
}
