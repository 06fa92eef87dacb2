package answer

import (
	"context"
	"fmt"

	"sitechat-rag/internal/models"
)

const (
	faqSystemPrompt     = "You are a helpful and informative assistant."
	productSystemPrompt = "You are a helpful e-commerce assistant specializing in the store's products."
)

// ChatClient is the single completion call the responders need.
type ChatClient interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
}

// Responder turns a user query plus retrieved context into a reply.
type Responder interface {
	Respond(ctx context.Context, query, contextText string, history []models.ChatTurn) (string, error)
}

// FAQResponder answers document questions from an assembled context window.
type FAQResponder struct {
	client ChatClient
}

func NewFAQResponder(client ChatClient) *FAQResponder {
	return &FAQResponder{client: client}
}

func (r *FAQResponder) Respond(ctx context.Context, query, contextText string, history []models.ChatTurn) (string, error) {
	prompt := fmt.Sprintf(models.FAQPromptTemplate, query, models.RenderHistory(history), contextText)
	return r.client.GenerateContent(ctx, faqSystemPrompt, prompt)
}

// ProductResponder recommends products from concatenated catalog blocks.
type ProductResponder struct {
	client ChatClient
}

func NewProductResponder(client ChatClient) *ProductResponder {
	return &ProductResponder{client: client}
}

func (r *ProductResponder) Respond(ctx context.Context, query, contextText string, history []models.ChatTurn) (string, error) {
	prompt := fmt.Sprintf(models.ProductPromptTemplate, query, models.RenderHistory(history), contextText)
	return r.client.GenerateContent(ctx, productSystemPrompt, prompt)
}
