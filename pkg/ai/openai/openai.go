package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/evergreensystems/evergreen-ai/pkg/ai"
)

const NAME = "openai"

type Driver struct {
	client *openai.Client
	model  ai.ModelName
}

func New(token, proxy string, model ai.ModelName) *Driver {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}

	if model.ChatModel == "" {
		model.ChatModel = openai.GPT4oMini
	}
	if model.EmbeddingModel == "" {
		model.EmbeddingModel = string(openai.LargeEmbedding3)
	}

	return &Driver{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *Driver) ModelName() ai.ModelName {
	return s.model
}

func (s *Driver) EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	queryReq := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(s.model.EmbeddingModel),
		Dimensions: 1024,
		Input:      content,
	}

	r := ai.EmbeddingResult{
		Usage: &openai.Usage{},
	}

	resp, err := s.client.CreateEmbeddings(ctx, queryReq)
	if err != nil {
		return r, fmt.Errorf("Error creating embedding: %w", err)
	}

	for _, v := range resp.Data {
		r.Data = append(r.Data, v.Embedding)
	}

	r.Usage.CompletionTokens = resp.Usage.CompletionTokens
	r.Usage.PromptTokens = resp.Usage.PromptTokens
	r.Usage.TotalTokens = resp.Usage.TotalTokens
	r.Model = string(resp.Model)

	return r, nil
}

func (s *Driver) QueryStream(ctx context.Context, req openai.ChatCompletionRequest) (ai.ChatStreamReader, error) {
	if req.Model == "" {
		req.Model = s.model.ChatModel
	}
	resp, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
