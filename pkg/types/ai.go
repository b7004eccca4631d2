package types

// MessageContext is one entry of the transcript handed to the completion
// service: the optional grounding block, prior turns, then the new user
// message.
type MessageContext struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are fixed per deployment, never user-controlled.
type GenerationParams struct {
	Model       string
	Temperature float32
	MaxTokens   int
}
