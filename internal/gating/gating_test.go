package gating_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kagent-dev/memoryanchor/internal/gating"
)

func TestIsConfirmed_EmptyIsRejected(t *testing.T) {
	assert.False(t, gating.IsConfirmed(""))
}

func TestIsConfirmed_EnglishPhrase(t *testing.T) {
	assert.True(t, gating.IsConfirmed("confirm delete"))
	assert.True(t, gating.IsConfirmed("CONFIRM DELETE please"))
	assert.True(t, gating.IsConfirmed("I confirm this action"))
}

func TestIsConfirmed_ChinesePhrase(t *testing.T) {
	assert.True(t, gating.IsConfirmed("确认删除"))
	assert.True(t, gating.IsConfirmed("我确认这个操作"))
}

func TestIsConfirmed_PlainRequestWithoutPhraseIsRejected(t *testing.T) {
	assert.False(t, gating.IsConfirmed("delete this memory"))
	assert.False(t, gating.IsConfirmed("yes"))
}
