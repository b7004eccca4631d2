package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenSpecID(t *testing.T) {
	SetupIDWorker(1)

	a := GenSpecIDStr()
	b := GenSpecIDStr()
	t.Log(a, len(a))
	assert.NotEqual(t, a, b)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("hello", 10))
	assert.Equal(t, "hel", TruncateRunes("hello", 3))
	assert.Equal(t, "", TruncateRunes("hello", 0))
	// multi-byte content must not be cut mid rune
	assert.Equal(t, "你好", TruncateRunes("你好世界", 2))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "title", FirstLine("title\nbody"))
	assert.Equal(t, "title", FirstLine("  title  "))
	assert.Equal(t, "a", FirstLine("a\r\nb"))
}
