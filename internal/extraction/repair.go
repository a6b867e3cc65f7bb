package extraction

import (
	"encoding/json"
	"regexp"
	"strings"
)

// recloseArraysFirst fixes the order in which dangling closers are appended
// when balancing truncated JSON: arrays before objects. Truncation happens
// inside the trailing tables array nested in the document object, so that
// order terminates the common case correctly.
const recloseArraysFirst = true

var (
	// A comma followed by a quoted string that never terminates, at
	// end-of-input: the start of a key or element the model ran out of
	// tokens for.
	reDanglingString = regexp.MustCompile(`,\s*"(?:[^"\\]|\\.)*$`)
	// A comma followed by an array opener that never closes.
	reDanglingArray = regexp.MustCompile(`,\s*\[[^\]]*$`)
	// A comma followed by an object opener that never closes. Only used by
	// the aggressive second pass: it can eat a legitimate trailing element.
	reDanglingObject = regexp.MustCompile(`,\s*\{[^}]*$`)
	// One trailing comma.
	reTrailingComma = regexp.MustCompile(`,\s*$`)
)

// RepairJSON attempts to reconstruct a valid JSON value from a string that
// was cut off mid-token, typically by a model's output-length limit. It
// trims dangling partial tokens, closes an unterminated string, and balances
// brackets. Returns the repaired document and true on success, or nil and
// false when the text cannot be salvaged.
//
// This is a heuristic: it helps when truncation happened between structural
// tokens or within a single trailing string, array, or object. Truncation
// that leaves multiple dangling levels needing different closers in
// non-trailing positions stays broken, and callers fall back to treating
// the text as unstructured.
func RepairJSON(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	candidate := reclose(cleanup(s, false))
	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), true
	}

	// Second attempt: additionally drop a dangling trailing object or array
	// element, then rebalance from scratch.
	candidate = reclose(cleanup(s, true))
	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), true
	}
	return nil, false
}

// cleanup strips trailing partial tokens. The aggressive pass additionally
// removes an unterminated trailing object or array element.
func cleanup(s string, aggressive bool) string {
	s = strings.TrimSpace(s)
	s = reDanglingString.ReplaceAllString(s, "")
	s = reDanglingArray.ReplaceAllString(s, "")
	if aggressive {
		s = reDanglingObject.ReplaceAllString(s, "")
		s = reDanglingArray.ReplaceAllString(s, "")
	}
	s = reTrailingComma.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// reclose scans the string, tracking string/escape state, and appends the
// closers the truncation dropped.
func reclose(s string) string {
	var (
		inString bool
		escaped  bool
		braces   int
		brackets int
	)
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	first, second := ']', '}'
	firstN, secondN := brackets, braces
	if !recloseArraysFirst {
		first, second = second, first
		firstN, secondN = secondN, firstN
	}
	for i := 0; i < firstN; i++ {
		b.WriteRune(first)
	}
	for i := 0; i < secondN; i++ {
		b.WriteRune(second)
	}
	return b.String()
}
