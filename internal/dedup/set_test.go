package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilder(t *testing.T) {
	withSender := KeyBuilder{IncludeSender: true}
	assert.Equal(t, "+66812345678|ACME|hi", withSender.Key("+66812345678", "ACME", "hi"))
	assert.Equal(t, "+66812345678|hi", withSender.Key("+66812345678", "", "hi"))

	withoutSender := KeyBuilder{}
	assert.Equal(t, "+66812345678|hi", withoutSender.Key("+66812345678", "ACME", "hi"))
}

func TestSetOperations(t *testing.T) {
	s := NewSet("b", "a")
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))

	s.Add("c")
	s.Merge(NewSet("a", "d"))
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.Keys())
}
