package belief

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Resolver is a pure function over (slot name, message, recent
// history, prior belief state) that either resolves a slot value or
// reports it could not (spec §4.1 step 3: "first non-null wins").
type Resolver func(slotName, message string, history []string, prior *BeliefState) (interface{}, bool)

// resolverChain is the canonical resolver set spec §4.1 names, keyed by
// the name used in SlotDef.Resolvers.
var resolverChain = map[string]Resolver{
	"keyword_map":              resolveKeywordMap,
	"file_extension_inference": resolveFileExtension,
	"last_mentioned_file":      resolveLastMentionedFile,
	"last_mentioned_path":      resolveLastMentionedPath,
	"last_mentioned_entity":    resolveLastMentionedEntity,
	"history_scan":             resolveHistoryScan,
	"context_inference":        resolveContextInference,
}

// Resolve runs a slot's resolver chain in order, returning the first
// non-null result.
func Resolve(chain []string, slotName, message string, history []string, prior *BeliefState) (interface{}, bool) {
	for _, name := range chain {
		resolver, ok := resolverChain[name]
		if !ok {
			continue
		}
		if v, ok := resolver(slotName, message, history, prior); ok {
			return v, true
		}
	}
	return nil, false
}

var fileToken = regexp.MustCompile(`[\w./\-]+\.[A-Za-z0-9]{1,8}\b`)

// resolveFileExtension matches a token containing a dot followed by a
// short alphanumeric run, e.g. "agent/auth.py".
func resolveFileExtension(_, message string, _ []string, _ *BeliefState) (interface{}, bool) {
	if m := fileToken.FindString(message); m != "" {
		return m, true
	}
	return nil, false
}

// resolveLastMentionedFile scans the current message, then history
// newest-first, for the last file-shaped token.
func resolveLastMentionedFile(_, message string, history []string, _ *BeliefState) (interface{}, bool) {
	if m := lastMatch(fileToken, message); m != "" {
		return m, true
	}
	for i := len(history) - 1; i >= 0; i-- {
		if m := lastMatch(fileToken, history[i]); m != "" {
			return m, true
		}
	}
	return nil, false
}

var pathToken = regexp.MustCompile(`[\w\-]+(?:/[\w\-.]+)+/?`)

// resolveLastMentionedPath looks for a directory-shaped token (no
// required extension, but at least one path separator).
func resolveLastMentionedPath(_, message string, history []string, _ *BeliefState) (interface{}, bool) {
	if m := lastMatch(pathToken, message); m != "" {
		return filepath.ToSlash(m), true
	}
	for i := len(history) - 1; i >= 0; i-- {
		if m := lastMatch(pathToken, history[i]); m != "" {
			return filepath.ToSlash(m), true
		}
	}
	return nil, false
}

var quotedOrCapitalized = regexp.MustCompile(`"([^"]+)"|\b([A-Z][A-Za-z0-9_]{2,})\b`)

// resolveLastMentionedEntity looks for a quoted phrase or a
// capitalized identifier-shaped token, treated as the last-mentioned
// named entity (symbol, class, ticket, etc.).
func resolveLastMentionedEntity(_, message string, history []string, _ *BeliefState) (interface{}, bool) {
	if v, ok := lastEntity(message); ok {
		return v, true
	}
	for i := len(history) - 1; i >= 0; i-- {
		if v, ok := lastEntity(history[i]); ok {
			return v, true
		}
	}
	return nil, false
}

func lastEntity(text string) (string, bool) {
	matches := quotedOrCapitalized.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	last := matches[len(matches)-1]
	if last[1] != "" {
		return last[1], true
	}
	return last[2], true
}

// resolveKeywordMap recognizes explicit "key: value" or "key=value"
// mentions naming the slot itself (e.g. slot "target_file" matches a
// "file:" or "target:" assignment).
var keywordAssignment = regexp.MustCompile(`(?i)\b(file|path|target)\s*[:=]\s*([^\s,;]+)`)

func resolveKeywordMap(slotName, message string, _ []string, _ *BeliefState) (interface{}, bool) {
	for _, m := range keywordAssignment.FindAllStringSubmatch(message, -1) {
		if strings.Contains(strings.ToLower(slotName), strings.ToLower(m[1])) {
			return m[2], true
		}
	}
	return nil, false
}

// resolveHistoryScan returns the trimmed current message when there is
// no history, otherwise the most recent non-blank history entry; useful
// for optional descriptive slots like "symptom". It does not search
// older history entries.
func resolveHistoryScan(_, message string, history []string, _ *BeliefState) (interface{}, bool) {
	trimmed := strings.TrimSpace(message)
	if trimmed != "" && len(history) == 0 {
		return trimmed, true
	}
	if len(history) > 0 {
		last := strings.TrimSpace(history[len(history)-1])
		if last != "" {
			return last, true
		}
	}
	return nil, false
}

// resolveContextInference is the final fallback: reuse the prior
// belief state's value for this slot, if any, under the assumption the
// slot still applies to this continuation turn.
func resolveContextInference(slotName, _ string, _ []string, prior *BeliefState) (interface{}, bool) {
	if prior == nil {
		return nil, false
	}
	v, ok := prior.Slots[slotName]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func lastMatch(re *regexp.Regexp, text string) string {
	matches := re.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}
