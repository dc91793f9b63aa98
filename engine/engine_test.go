package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dkoval/tabletalk/model"
	"github.com/dkoval/tabletalk/store"
	"github.com/sashabaranov/go-openai"
)

// scriptedLLM replays a fixed sequence of responses and records every
// request it receives.
type scriptedLLM struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
}

func (s *scriptedLLM) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	s.requests = append(s.requests, request)
	if len(s.responses) == 0 {
		return textResponse("out of script"), nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			}},
		},
	}
}

func toolResponse(calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				FinishReason: openai.FinishReasonToolCalls,
				Message: openai.ChatCompletionMessage{
					Role:      openai.ChatMessageRoleAssistant,
					ToolCalls: calls,
				},
			},
		},
	}
}

func call(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func newTestEngine(llm *scriptedLLM) *Engine {
	e := NewEngine(store.NewMemoryStore())
	e.UseLLMClient(llm, "test-model")
	return e
}

func TestProcessMessageTaskEnd(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		toolResponse(call("1", "task_end", "{}")),
		textResponse("All done."),
	}}
	e := newTestEngine(llm)

	reply, err := e.ProcessMessage(context.Background(), 1, "hi")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if reply != "All done." {
		t.Errorf("expected summary reply, got %q", reply)
	}
	// One loop call plus one summarization call
	if len(llm.requests) != 2 {
		t.Errorf("expected 2 LLM calls, got %d", len(llm.requests))
	}
	// Summarization call carries no tools
	if len(llm.requests[1].Tools) != 0 {
		t.Errorf("summarization call must not offer tools")
	}
}

func TestInvocationCapStopsLoop(t *testing.T) {
	// A single model turn with 7 non-terminal tool calls: the 7th must
	// never run.
	calls := make([]openai.ToolCall, 7)
	for i := range calls {
		calls[i] = call(fmt.Sprintf("c%d", i), "list_records", `{"target":"Tables"}`)
	}
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		toolResponse(calls...),
		textResponse("stopped"),
	}}
	e := newTestEngine(llm)

	if _, err := e.ProcessMessage(context.Background(), 1, "loop forever"); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	total := 0
	for _, n := range e.ToolUsage() {
		total += n
	}
	if total != MaxToolInvocations {
		t.Errorf("expected exactly %d invocations, got %d", MaxToolInvocations, total)
	}
}

func TestInvocationCapAcrossIterations(t *testing.T) {
	// Three iterations of three calls each: the loop must stop during the
	// second batch of the second response.
	batch := func(prefix string) openai.ChatCompletionResponse {
		return toolResponse(
			call(prefix+"a", "list_records", `{"target":"Tables"}`),
			call(prefix+"b", "list_records", `{"target":"Tables"}`),
			call(prefix+"c", "list_records", `{"target":"Tables"}`),
		)
	}
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		batch("x"), batch("y"), batch("z"),
		textResponse("stopped"),
	}}
	e := newTestEngine(llm)

	if _, err := e.ProcessMessage(context.Background(), 1, "go"); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	total := 0
	for _, n := range e.ToolUsage() {
		total += n
	}
	if total != MaxToolInvocations {
		t.Errorf("expected exactly %d invocations, got %d", MaxToolInvocations, total)
	}
	// Two loop calls and one summarization; the third batch never ran.
	if len(llm.requests) != 3 {
		t.Errorf("expected 3 LLM calls, got %d", len(llm.requests))
	}
}

func TestNoToolsNudge(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		textResponse("thinking out loud"),
		toolResponse(call("1", "task_end", "{}")),
		textResponse("done"),
	}}
	e := newTestEngine(llm)

	if _, err := e.ProcessMessage(context.Background(), 1, "hi"); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if len(llm.requests) != 3 {
		t.Fatalf("expected 3 LLM calls, got %d", len(llm.requests))
	}

	// The second loop request must carry the sentinel note.
	second := llm.requests[1].Messages
	found := false
	for _, msg := range second {
		if strings.Contains(msg.Content, noToolsNote) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q in follow-up transcript", noToolsNote)
	}
}

func TestHistoryTrimmedToCap(t *testing.T) {
	st := store.NewMemoryStore()
	convCtx := model.NewContext()
	for i := 0; i < 30; i++ {
		convCtx.Append(model.RoleUser, fmt.Sprintf("old message %d", i))
	}
	if err := st.SaveContext(1, convCtx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		toolResponse(call("1", "task_end", "{}")),
		textResponse("done"),
	}}
	e := NewEngine(st)
	e.UseLLMClient(llm, "test-model")

	if _, err := e.ProcessMessage(context.Background(), 1, "new message"); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	saved, err := st.LoadContext(1)
	if err != nil {
		t.Fatalf("LoadContext failed: %v", err)
	}
	if len(saved.History) != model.MaxHistoryTurns {
		t.Errorf("expected history trimmed to %d, got %d", model.MaxHistoryTurns, len(saved.History))
	}
	last := saved.History[len(saved.History)-1]
	if last.Role != model.RoleAssistant || last.Content != "done" {
		t.Errorf("expected final assistant turn, got %+v", last)
	}
}

func TestToolResultsReachDispatcher(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		toolResponse(call("1", "create_table", `{"table_name":"expenses"}`)),
		toolResponse(call("2", "task_end", "{}")),
		textResponse("created"),
	}}
	e := newTestEngine(llm)

	if _, err := e.ProcessMessage(context.Background(), 7, "make a table"); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	tables, err := e.CRUD().List(model.KindTable, 7)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tables) != 1 || tables[0]["table_name"] != "expenses" {
		t.Errorf("expected table created through the loop, got %v", tables)
	}

	// The follow-up request must contain the tool result message.
	second := llm.requests[1].Messages
	found := false
	for _, msg := range second {
		if msg.Role == openai.ChatMessageRoleTool && strings.Contains(msg.Content, "table created with id") {
			found = true
		}
	}
	if !found {
		t.Errorf("tool result missing from follow-up transcript")
	}
}

func TestClearContext(t *testing.T) {
	st := store.NewMemoryStore()
	convCtx := model.NewContext()
	convCtx.Append(model.RoleUser, "hello")
	if err := st.SaveContext(1, convCtx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	e := NewEngine(st)
	if err := e.ClearContext(1); err != nil {
		t.Fatalf("ClearContext failed: %v", err)
	}

	saved, err := st.LoadContext(1)
	if err != nil {
		t.Fatalf("LoadContext failed: %v", err)
	}
	if len(saved.History) != 0 {
		t.Errorf("expected empty history, got %d turns", len(saved.History))
	}
}

func TestProcessMessageWithoutClient(t *testing.T) {
	e := NewEngine(store.NewMemoryStore())
	if _, err := e.ProcessMessage(context.Background(), 1, "hi"); err == nil {
		t.Error("expected error without configured LLM client")
	}
}

func TestProcessMessageCancelled(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		toolResponse(call("1", "task_end", "{}")),
		textResponse("done"),
	}}
	e := newTestEngine(llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.ProcessMessage(ctx, 1, "hi"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
