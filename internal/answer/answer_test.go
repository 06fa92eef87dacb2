package answer

import (
	"context"
	"strings"
	"testing"

	"sitechat-rag/internal/models"
)

type captureClient struct {
	system string
	prompt string
	reply  string
}

func (c *captureClient) GenerateContent(_ context.Context, system, prompt string) (string, error) {
	c.system = system
	c.prompt = prompt
	return c.reply, nil
}

func TestFAQResponder_PromptContents(t *testing.T) {
	client := &captureClient{reply: "answer"}
	r := NewFAQResponder(client)

	history := []models.ChatTurn{{Role: "user", Content: "earlier question"}}
	reply, err := r.Respond(context.Background(), "what is shipping?", "shipping takes 3 days", history)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "answer" {
		t.Errorf("reply = %q", reply)
	}
	for _, want := range []string{"what is shipping?", "earlier question", "shipping takes 3 days"} {
		if !strings.Contains(client.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if client.system != faqSystemPrompt {
		t.Errorf("system prompt = %q", client.system)
	}
}

func TestProductResponder_PromptContents(t *testing.T) {
	client := &captureClient{reply: "try the blue mug"}
	r := NewProductResponder(client)

	reply, err := r.Respond(context.Background(), "any mugs?", "Name: Blue Mug\nPrice: 12.50", nil)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "try the blue mug" {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(client.prompt, "Blue Mug") || !strings.Contains(client.prompt, "any mugs?") {
		t.Errorf("prompt missing query or product block:\n%s", client.prompt)
	}
	if !strings.Contains(client.prompt, "(no previous messages)") {
		t.Error("empty history placeholder missing from prompt")
	}
	if client.system != productSystemPrompt {
		t.Errorf("system prompt = %q", client.system)
	}
}
