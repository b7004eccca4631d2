package srv

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/samber/lo"
	oai "github.com/sashabaranov/go-openai"

	"github.com/evergreensystems/evergreen-ai/pkg/ai"
	"github.com/evergreensystems/evergreen-ai/pkg/ai/openai"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

// AIDriver is the single openai-compatible driver used for both query
// embedding and chat completion. Generation parameters are fixed server
// side, callers never pick a model.
type AIDriver interface {
	ai.Driver
	GenerationParams() types.GenerationParams
	MsgIsOverLimit(msgs []*types.MessageContext) bool
}

// contextTokenLimit is the request budget shared by the system prompt and
// the conversation history. Completion tokens are reserved on top of it.
const contextTokenLimit = 16000

type AIConfig struct {
	Token    string `toml:"token"`
	Endpoint string `toml:"endpoint"`

	ChatModel      string  `toml:"chat_model"`
	EmbeddingModel string  `toml:"embedding_model"`
	Temperature    float32 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
}

func (c *AIConfig) FromENV() {
	c.Token = os.Getenv("EVERGREEN_API_AI_TOKEN")
	c.Endpoint = os.Getenv("EVERGREEN_API_AI_ENDPOINT")
	c.ChatModel = os.Getenv("EVERGREEN_API_AI_CHAT_MODEL")
	c.EmbeddingModel = os.Getenv("EVERGREEN_API_AI_EMBEDDING_MODEL")
	if raw := os.Getenv("EVERGREEN_API_AI_MAX_TOKENS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			c.MaxTokens = v
		}
	}
}

type AI struct {
	*openai.Driver
	params types.GenerationParams
}

func (a *AI) GenerationParams() types.GenerationParams {
	return a.params
}

func (a *AI) MsgIsOverLimit(msgs []*types.MessageContext) bool {
	tokenNum, err := ai.NumTokens(lo.Map(msgs, func(item *types.MessageContext, _ int) oai.ChatCompletionMessage {
		return oai.ChatCompletionMessage{
			Role:    item.Role,
			Content: item.Content,
		}
	}), a.params.Model)
	if err != nil {
		slog.Error("failed to count request tokens", slog.String("error", err.Error()), slog.String("model", a.params.Model))
		return false
	}

	return tokenNum+a.params.MaxTokens > contextTokenLimit
}

func ApplyAI(cfg AIConfig) ApplyFunc {
	return func(s *Srv) {
		driver := openai.New(cfg.Token, cfg.Endpoint, ai.ModelName{
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
		})

		temperature := cfg.Temperature
		if temperature == 0 {
			temperature = 0.7
		}
		maxTokens := cfg.MaxTokens
		if maxTokens == 0 {
			maxTokens = 2048
		}

		s.ai = &AI{
			Driver: driver,
			params: types.GenerationParams{
				Model:       driver.ModelName().ChatModel,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			},
		}
	}
}
