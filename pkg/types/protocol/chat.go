package protocol

// Stream event frames relayed to the caller as `data: <json>\n\n`. A stream
// carries zero or more chunk events followed by exactly one terminal event,
// either done or error, never both.
const (
	STREAM_EVENT_CHUNK = "chunk"
	STREAM_EVENT_DONE  = "done"
	STREAM_EVENT_ERROR = "error"
)

type StreamEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func ChunkEvent(content string) StreamEvent {
	return StreamEvent{Type: STREAM_EVENT_CHUNK, Content: content}
}

func DoneEvent(messageID string) StreamEvent {
	return StreamEvent{Type: STREAM_EVENT_DONE, MessageID: messageID}
}

func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: STREAM_EVENT_ERROR, Error: msg}
}

// GenConversationTurnKey is the per-conversation lock key that keeps two
// overlapping turns from interleaving their persistence writes.
func GenConversationTurnKey(conversationID string) string {
	return "conversation:turn:" + conversationID
}
