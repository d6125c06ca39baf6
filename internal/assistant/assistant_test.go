package assistant

import (
	"context"
	"errors"
	"iter"
	"testing"

	"tradesdesk_backend/internal/conversation"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type fakeLLM struct {
	got   *model.LLMRequest
	parts []*genai.Part
	err   error
}

func (f *fakeLLM) Name() string { return "fake-model" }

func (f *fakeLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	f.got = req
	return func(yield func(*model.LLMResponse, error) bool) {
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		yield(&model.LLMResponse{Content: &genai.Content{Role: genai.RoleModel, Parts: f.parts}}, nil)
	}
}

func TestCompleteMapsHistoryAndPrompt(t *testing.T) {
	llm := &fakeLLM{parts: []*genai.Part{{Text: "thinking...", Thought: true}, {Text: " Happy to help. "}}}
	svc := New(llm)

	reply, err := svc.Complete(context.Background(), "be nice", []conversation.Turn{
		{Role: conversation.RoleUser, Content: "hello"},
		{Role: conversation.RoleAssistant, Content: "hi!"},
		{Role: conversation.RoleUser, Content: "  "},
		{Role: conversation.RoleUser, Content: "price?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Happy to help." {
		t.Fatalf("unexpected reply %q", reply)
	}

	req := llm.got
	if req.Model != "fake-model" || len(req.Contents) != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Contents[1].Role != genai.RoleModel || req.Contents[2].Parts[0].Text != "price?" {
		t.Fatalf("unexpected contents: %+v", req.Contents)
	}
	if req.Config.SystemInstruction.Parts[0].Text != "be nice" {
		t.Fatalf("unexpected system instruction: %+v", req.Config.SystemInstruction)
	}
}

func TestCompleteErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := New(&fakeLLM{err: boom}).Complete(context.Background(), "", nil); !errors.Is(err, boom) {
		t.Fatalf("expected model error, got %v", err)
	}
	if _, err := New(&fakeLLM{}).Complete(context.Background(), "", nil); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected empty reply error, got %v", err)
	}
}
