package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextTypeValidate(t *testing.T) {
	assert.NoError(t, CONTEXT_TYPE_DOCUMENT.Validate())
	assert.NoError(t, CONTEXT_TYPE_PROJECT.Validate())
	assert.NoError(t, CONTEXT_TYPE_KNOWLEDGE_BASE.Validate())

	assert.Error(t, ContextType("folder").Validate())
	assert.Error(t, ContextType("").Validate())
}
