// Package safety implements the Safety Filter (§4.G), a direct port of
// original_source/backend/core/safety_filter.py's PII/sensitive-word/
// custom-pattern scan and allow/warn/redact/block decision table.
package safety

import (
	"regexp"
	"strings"

	"github.com/kagent-dev/memoryanchor/internal/env"
)

// Action is the closed set of filter outcomes.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionWarn   Action = "warn"
	ActionRedact Action = "redact"
	ActionBlock  Action = "block"
)

// RedactPlaceholder replaces a PII match when Action is redact.
const RedactPlaceholder = "[REDACTED]"

// piiPattern pairs a named PII type with its detection regex, in the
// fixed order the original scans them.
type piiPattern struct {
	name    string
	pattern *regexp.Regexp
}

// piiPatterns mirrors SafetyFilter.PII_PATTERNS exactly.
var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"phone_cn", regexp.MustCompile(`\b1[3-9]\d{9}\b`)},
	{"phone_us", regexp.MustCompile(`\b(?:\(\d{3}\)\s?|\d{3}[-.])\d{3}[-.]?\d{4}\b`)},
	{"id_card_cn", regexp.MustCompile(`\b[1-9]\d{5}(?:19|20)\d{2}(?:0[1-9]|1[0-2])(?:0[1-9]|[12]\d|3[01])\d{3}[\dXx]\b`)},
	{"credit_card", regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
	{"ip_address", regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
	{"api_key", regexp.MustCompile(`(?i)\b(?:sk-|api[_-]|key[_-]|secret[_-]|token[_-]|auth[_-])[A-Za-z0-9_-]{20,}\b`)},
}

// Config is the Safety Filter's tunable behavior.
type Config struct {
	Enabled              bool
	MaxLength            int
	PIIDetection         bool
	PIIAction            Action
	SensitiveWordAction  Action
	SensitiveWords       map[string]struct{}
	RedactPlaceholder    string
}

// ConfigFromEnv builds a Config from MA_SAFETY_* environment variables.
func ConfigFromEnv() Config {
	words := make(map[string]struct{})
	for _, w := range strings.Split(env.SafetySensitive.Get(), ",") {
		w = strings.TrimSpace(w)
		if w != "" {
			words[strings.ToLower(w)] = struct{}{}
		}
	}

	piiAction := Action(strings.ToLower(env.SafetyPIIAction.Get()))
	switch piiAction {
	case ActionAllow, ActionWarn, ActionRedact, ActionBlock:
	default:
		piiAction = ActionRedact
	}

	return Config{
		Enabled:             env.SafetyEnabled.Get(),
		MaxLength:           env.SafetyMaxLength.Get(),
		PIIDetection:        true,
		PIIAction:           piiAction,
		SensitiveWordAction: ActionWarn,
		SensitiveWords:      words,
		RedactPlaceholder:   RedactPlaceholder,
	}
}

// Result is the outcome of checking one piece of content.
type Result struct {
	Action                  Action
	OriginalContent         string
	FilteredContent         string
	Warnings                []string
	BlockedReasons          []string
	PIIDetected             []string
	SensitiveWordsDetected  []string
}

// IsBlocked reports whether the content must not be persisted.
func (r Result) IsBlocked() bool { return r.Action == ActionBlock }

// IsModified reports whether FilteredContent differs from the input.
func (r Result) IsModified() bool { return r.OriginalContent != r.FilteredContent }

// Filter is the Safety Filter (§4.G).
type Filter struct {
	config         Config
	customPatterns map[string]*regexp.Regexp
}

// New builds a Filter with the given config.
func New(config Config) *Filter {
	if config.RedactPlaceholder == "" {
		config.RedactPlaceholder = RedactPlaceholder
	}
	if config.SensitiveWords == nil {
		config.SensitiveWords = make(map[string]struct{})
	}
	return &Filter{config: config, customPatterns: make(map[string]*regexp.Regexp)}
}

// AddSensitiveWord registers one additional lowercase sensitive word.
func (f *Filter) AddSensitiveWord(word string) {
	f.config.SensitiveWords[strings.ToLower(word)] = struct{}{}
}

// AddCustomPattern registers a named custom detection regex.
func (f *Filter) AddCustomPattern(name, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	f.customPatterns[name] = re
	return nil
}

// Check runs the full pipeline: length check, PII scan, sensitive-word
// scan, custom patterns, then decides allow/warn/redact/block.
func (f *Filter) Check(content string) Result {
	if !f.config.Enabled {
		return Result{Action: ActionAllow, OriginalContent: content, FilteredContent: content}
	}
	if content == "" {
		return Result{Action: ActionAllow, OriginalContent: "", FilteredContent: ""}
	}

	var warnings, blockedReasons, piiDetected, sensitiveDetected []string
	filtered := content

	if len([]rune(content)) > f.config.MaxLength {
		blockedReasons = append(blockedReasons, "content exceeds max length")
	}

	if f.config.PIIDetection {
		var found []string
		filtered, found = f.detectAndRedactPII(filtered)
		piiDetected = append(piiDetected, found...)
		if len(found) > 0 {
			switch f.config.PIIAction {
			case ActionBlock:
				blockedReasons = append(blockedReasons, "PII detected: "+strings.Join(found, ", "))
			case ActionWarn:
				warnings = append(warnings, "PII detected: "+strings.Join(found, ", "))
			}
		}
	}

	sensitiveFound := f.detectSensitiveWords(content)
	sensitiveDetected = append(sensitiveDetected, sensitiveFound...)
	if len(sensitiveFound) > 0 {
		switch f.config.SensitiveWordAction {
		case ActionBlock:
			blockedReasons = append(blockedReasons, "sensitive words detected: "+strings.Join(sensitiveFound, ", "))
		case ActionWarn:
			warnings = append(warnings, "sensitive words detected: "+strings.Join(sensitiveFound, ", "))
		}
	}

	customMatches := f.checkCustomPatterns(content)
	if len(customMatches) > 0 {
		warnings = append(warnings, "custom patterns matched: "+strings.Join(customMatches, ", "))
	}

	var action Action
	switch {
	case len(blockedReasons) > 0:
		action = ActionBlock
	case filtered != content:
		action = ActionRedact
	case len(warnings) > 0:
		action = ActionWarn
	default:
		action = ActionAllow
	}

	return Result{
		Action:                 action,
		OriginalContent:        content,
		FilteredContent:        filtered,
		Warnings:               warnings,
		BlockedReasons:         blockedReasons,
		PIIDetected:            piiDetected,
		SensitiveWordsDetected: sensitiveDetected,
	}
}

// IsSafe is a quick allow/not-allow check.
func (f *Filter) IsSafe(content string) bool {
	return !f.Check(content).IsBlocked()
}

func (f *Filter) detectAndRedactPII(content string) (string, []string) {
	var found []string
	redacted := content
	for _, p := range piiPatterns {
		matches := p.pattern.FindAllString(content, -1)
		if len(matches) == 0 {
			continue
		}
		found = append(found, p.name)
		if f.config.PIIAction == ActionRedact {
			redacted = p.pattern.ReplaceAllString(redacted, f.config.RedactPlaceholder)
		}
	}
	return redacted, found
}

func (f *Filter) detectSensitiveWords(content string) []string {
	if len(f.config.SensitiveWords) == 0 {
		return nil
	}
	lower := strings.ToLower(content)
	var found []string
	for word := range f.config.SensitiveWords {
		if strings.Contains(lower, word) {
			found = append(found, word)
		}
	}
	return found
}

func (f *Filter) checkCustomPatterns(content string) []string {
	var matched []string
	for name, re := range f.customPatterns {
		if re.MatchString(content) {
			matched = append(matched, name)
		}
	}
	return matched
}
