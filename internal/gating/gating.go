// Package gating implements the high-risk operation confirmation check,
// a direct port of original_source/backend/hooks/gating_hook.py's
// CONFIRMATION_PHRASES/is_confirmation_present pair: a handful of
// case-insensitive phrases (English and Chinese) that must appear
// somewhere in the caller-supplied confirmation text before a
// destructive operation is allowed to proceed.
package gating

import "strings"

// Phrases mirrors gating_hook.py's CONFIRMATION_PHRASES exactly.
var Phrases = []string{
	"确认删除",
	"confirm delete",
	"我确认",
	"i confirm",
	"确认执行",
	"confirm execute",
}

// IsConfirmed reports whether text contains one of Phrases, matched
// case-insensitively, the way is_confirmation_present does.
func IsConfirmed(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range Phrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
