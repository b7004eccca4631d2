package ai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/evergreensystems/evergreen-ai/pkg/safe"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

type ModelName struct {
	ChatModel      string `toml:"chat_model"`
	EmbeddingModel string `toml:"embedding_model"`
}

// ChatStreamReader is the minimal surface of an upstream completion
// stream. *openai.ChatCompletionStream satisfies it.
type ChatStreamReader interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Query is the chat-completion side of a model driver.
type Query interface {
	QueryStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStreamReader, error)
}

// Embedder turns user text into a query vector.
type Embedder interface {
	EmbeddingForQuery(ctx context.Context, content []string) (EmbeddingResult, error)
}

type Driver interface {
	Query
	Embedder
	ModelName() ModelName
}

type EmbeddingResult struct {
	Model string
	Data  [][]float32
	Usage *openai.Usage
}

type QueryOptions struct {
	ctx     context.Context
	_driver Query
	query   []*types.MessageContext
	params  types.GenerationParams
}

func NewQueryOptions(ctx context.Context, driver Query, params types.GenerationParams, query []*types.MessageContext) *QueryOptions {
	return &QueryOptions{
		ctx:     ctx,
		_driver: driver,
		params:  params,
		query:   query,
	}
}

func (s *QueryOptions) QueryStream() (ChatStreamReader, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.params.Model,
		Temperature: s.params.Temperature,
		MaxTokens:   s.params.MaxTokens,
		Stream:      true,
		Messages: lo.Map(s.query, func(item *types.MessageContext, _ int) openai.ChatCompletionMessage {
			return openai.ChatCompletionMessage{
				Role:    item.Role,
				Content: item.Content,
			}
		}),
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	return s._driver.QueryStream(s.ctx, req)
}

type ResponseChoice struct {
	ID           string
	Message      string
	FinishReason string
	Error        error
	Usage        *openai.Usage
	Model        string
}

// HandleAIStream drains the completion stream into a bounded channel.
// The channel send blocks when the consumer falls behind, which holds
// back further reads from the upstream connection. Cancelling ctx stops
// the producer and surfaces ctx.Err() as the final choice.
func HandleAIStream(ctx context.Context, resp ChatStreamReader) chan ResponseChoice {
	respChan := make(chan ResponseChoice, 10)
	ticker := time.NewTicker(time.Millisecond * 500)
	go safe.Run(func() {
		ctx, cancel := context.WithCancel(ctx)
		defer func() {
			close(respChan)
			resp.Close()
			ticker.Stop()
			cancel()
		}()

		var (
			strs      = strings.Builder{}
			messageID string
			mu        sync.Mutex
		)

		flushResponse := func() {
			mu.Lock()
			defer mu.Unlock()
			if strs.Len() > 0 {
				respChan <- ResponseChoice{
					ID:      messageID,
					Message: strs.String(),
				}
				strs.Reset()
			}
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					flushResponse()
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				respChan <- ResponseChoice{
					Error: ctx.Err(),
				}
				return
			default:
			}

			msg, err := resp.Recv()
			if err != nil && err != io.EOF {
				respChan <- ResponseChoice{
					Error: err,
				}
				return
			}

			if err == io.EOF {
				flushResponse()
				return
			}

			if msg.Usage != nil {
				respChan <- ResponseChoice{
					Usage: msg.Usage,
					Model: msg.Model,
				}
			}

			for _, v := range msg.Choices {
				if v.FinishReason != "" {
					flushResponse()
					respChan <- ResponseChoice{
						Message:      v.Delta.Content,
						FinishReason: string(v.FinishReason),
					}
					continue
				}

				if v.Delta.Content == "" {
					continue
				}

				if messageID == "" {
					messageID = msg.ID
				}

				mu.Lock()
				strs.WriteString(v.Delta.Content)
				mu.Unlock()
			}
		}
	})

	return respChan
}

func NumTokens(messages []openai.ChatCompletionMessage, model string) (numTokens int, err error) {
	var tokensPerMessage, tokensPerName int
	switch model {
	case "gpt-3.5-turbo-0613",
		"gpt-3.5-turbo-16k-0613",
		"gpt-4-0314",
		"gpt-4-32k-0314",
		"gpt-4-0613",
		"gpt-4-32k-0613":
		tokensPerMessage = 3
		tokensPerName = 1
	case "gpt-3.5-turbo-0301":
		tokensPerMessage = 4 // every message follows <|start|>{role/name}\n{content}<|end|>\n
		tokensPerName = -1   // if there's a name, the role is omitted
	default:
		if strings.Contains(model, "gpt-4") {
			return NumTokens(messages, "gpt-4-0613")
		} else {
			return NumTokens(messages, "gpt-3.5-turbo-0613")
		}
	}

	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		err = fmt.Errorf("encoding for model: %v", err)
		return
	}

	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(message.Role, nil, nil))
		numTokens += len(tkm.Encode(message.Name, nil, nil))
		if message.Name != "" {
			numTokens += tokensPerName
		}
	}
	numTokens += 3 // every reply is primed with <|start|>assistant<|message|>
	return numTokens, nil
}
