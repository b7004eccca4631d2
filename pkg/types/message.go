package types

import (
	"encoding/json"
	"fmt"
)

type Message struct {
	ID             string           `json:"id" db:"id"`
	ConversationID string           `json:"conversation_id" db:"conversation_id"`
	UserID         string           `json:"user_id" db:"user_id"`
	Role           MessageUserRole  `json:"role" db:"role"`
	Content        string           `json:"content" db:"content"`
	Citations      MessageCitations `json:"citations,omitempty" db:"citations"`
	Metadata       TurnMetadata     `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      int64            `json:"created_at" db:"created_at"`
}

// Citation links generated text back to one retrieved chunk. Derived per
// turn, persisted only inside the owning assistant message.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Excerpt    string `json:"excerpt"`
	Label      string `json:"label"`
}

const CITATION_EXCERPT_LIMIT = 200

type MessageCitations []Citation

func (s MessageCitations) String() string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func (s *MessageCitations) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return s.scanBytes(src)
	case string:
		return s.scanBytes([]byte(src))
	case nil:
		*s = nil
		return nil
	}
	return fmt.Errorf("pq: cannot convert %T to MessageCitations", src)
}

func (s *MessageCitations) scanBytes(src []byte) error {
	if len(src) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(src, s)
}

// TurnMetadata records how the assistant message was produced, so degraded
// retrieval is observable after the fact.
type TurnMetadata struct {
	Model           string `json:"model,omitempty"`
	RAGUsed         bool   `json:"rag_used"`
	ChunksRetrieved int    `json:"chunks_retrieved"`
}

func (m TurnMetadata) String() string {
	raw, _ := json.Marshal(m)
	return string(raw)
}

func (m *TurnMetadata) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return m.scanBytes(src)
	case string:
		return m.scanBytes([]byte(src))
	case nil:
		*m = TurnMetadata{}
		return nil
	}
	return fmt.Errorf("pq: cannot convert %T to TurnMetadata", src)
}

func (m *TurnMetadata) scanBytes(src []byte) error {
	if len(src) == 0 {
		*m = TurnMetadata{}
		return nil
	}
	return json.Unmarshal(src, m)
}

type MessageUserRole int8

const (
	USER_ROLE_UNKNOWN   MessageUserRole = 0
	USER_ROLE_USER      MessageUserRole = 1
	USER_ROLE_ASSISTANT MessageUserRole = 2
	USER_ROLE_SYSTEM    MessageUserRole = 3
)

func (s MessageUserRole) String() string {
	switch s {
	case USER_ROLE_ASSISTANT:
		return "assistant"
	case USER_ROLE_USER:
		return "user"
	case USER_ROLE_SYSTEM:
		return "system"
	default:
		return "unknown"
	}
}

func GetMessageUserRole(r string) MessageUserRole {
	switch r {
	case "assistant":
		return USER_ROLE_ASSISTANT
	case "user":
		return USER_ROLE_USER
	case "system":
		return USER_ROLE_SYSTEM
	default:
		return USER_ROLE_UNKNOWN
	}
}

type CreateTurnArgs struct {
	MessageID   string
	Content     string
	ContextRefs []ContextRef
}
