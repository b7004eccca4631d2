package types

import "fmt"

// ContextType is the closed set of reference kinds a caller may ground a
// turn in. Unknown kinds are rejected at validation time rather than being
// silently treated as empty scopes.
type ContextType string

const (
	CONTEXT_TYPE_DOCUMENT       ContextType = "document"
	CONTEXT_TYPE_PROJECT        ContextType = "project"
	CONTEXT_TYPE_KNOWLEDGE_BASE ContextType = "knowledgeBase"
)

func (t ContextType) Validate() error {
	switch t {
	case CONTEXT_TYPE_DOCUMENT, CONTEXT_TYPE_PROJECT, CONTEXT_TYPE_KNOWLEDGE_BASE:
		return nil
	default:
		return fmt.Errorf("unknown context type %q", string(t))
	}
}

type ContextRef struct {
	Type ContextType `json:"type"`
	ID   string      `json:"id"`
}

// RetrievalScope is one searchable chunk pool. A document reference maps to
// one scope; project and knowledge-base references expand to one scope per
// document beneath them.
type RetrievalScope struct {
	DocumentID string
}

// ContextResolution reports how many caller references survived expansion,
// so the caller can be told "N of M contexts resolved".
type ContextResolution struct {
	Scopes    []RetrievalScope
	Requested int
	Resolved  int
	Dropped   int
}
