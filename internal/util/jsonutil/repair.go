package jsonutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when the text holds no object or array at all.
var ErrNoJSON = errors.New("jsonutil: no JSON object or array found")

// ErrUnrepairable is returned when the repaired text still does not decode.
var ErrUnrepairable = errors.New("jsonutil: JSON could not be repaired")

// scanState is the bracket/string state at the end of a prefix of JSON text.
type scanState struct {
	stack    []byte // open brackets, innermost last
	inString bool
	// byte offsets of the last complete string literal, -1 when none
	lastStrStart int
	lastStrEnd   int
}

func scan(s string) scanState {
	st := scanState{lastStrStart: -1, lastStrEnd: -1}
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				st.inString = false
				st.lastStrEnd = i
			}
			continue
		}
		switch c {
		case '"':
			st.inString = true
			st.lastStrStart = i
		case '{', '[':
			st.stack = append(st.stack, c)
		case '}', ']':
			if n := len(st.stack); n > 0 {
				st.stack = st.stack[:n-1]
			}
		}
	}
	return st
}

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		// drop the info string ("json", "JSON", ...)
		t = t[nl+1:]
	}
	if end := strings.LastIndex(t, "```"); end >= 0 {
		t = t[:end]
	}
	return strings.TrimSpace(t)
}

// ExtractJSON returns the first JSON object or array embedded in free-form
// model output. Prose before the value and after its closing bracket is
// dropped; a truncated value is returned as-is for Repair to finish.
func ExtractJSON(s string) (string, error) {
	t := StripFences(s)
	start := strings.IndexAny(t, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	t = t[start:]
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(t); i++ {
		c := t[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return t[:i+1], nil
			}
		}
	}
	return t, nil
}

// Repair closes truncated JSON on a best-effort basis: an unterminated
// string is closed, a dangling key, colon, comma or partial literal at the
// tail is removed, trailing commas before closers are dropped, and every
// bracket still open is closed innermost first.
func Repair(s string) string {
	out := strings.TrimSpace(s)
	if st := scan(out); st.inString {
		out += `"`
	}
	out = trimIncompleteTail(out)
	out = stripTrailingCommas(out)
	st := scan(out)
	var b strings.Builder
	b.WriteString(out)
	for i := len(st.stack) - 1; i >= 0; i-- {
		if st.stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

func trimIncompleteTail(s string) string {
	for {
		t := strings.TrimRight(s, " \t\r\n")
		if t == "" {
			return t
		}
		last := t[len(t)-1]
		switch {
		case last == ',':
			s = t[:len(t)-1]
			continue
		case last == ':':
			// "key": with no value; drop the key as well
			s = dropTrailingString(t[:len(t)-1])
			continue
		case last == '"':
			if isDanglingKey(t) {
				s = dropTrailingString(t)
				continue
			}
		case isPartialLiteral(t):
			s = strings.TrimRight(t, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
			continue
		case last == '.' || last == '-' || last == '+' || last == 'e' || last == 'E':
			s = t[:len(t)-1]
			continue
		}
		return t
	}
}

// isDanglingKey reports whether t ends with a string that sits in key
// position of an object, i.e. it follows '{' or ','.
func isDanglingKey(t string) bool {
	st := scan(t)
	if st.lastStrEnd != len(t)-1 || len(st.stack) == 0 || st.stack[len(st.stack)-1] != '{' {
		return false
	}
	before := strings.TrimRight(t[:st.lastStrStart], " \t\r\n")
	return before == "" || strings.HasSuffix(before, "{") || strings.HasSuffix(before, ",")
}

func dropTrailingString(s string) string {
	t := strings.TrimRight(s, " \t\r\n")
	if !strings.HasSuffix(t, `"`) {
		return t
	}
	st := scan(t)
	if st.lastStrEnd != len(t)-1 || st.lastStrStart < 0 {
		return t
	}
	return t[:st.lastStrStart]
}

func isPartialLiteral(t string) bool {
	i := len(t)
	for i > 0 {
		c := t[i-1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			i--
			continue
		}
		break
	}
	if i == len(t) {
		return false
	}
	switch t[i:] {
	case "true", "false", "null":
		return false
	}
	return true
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Decode extracts the JSON value from model output and unmarshals it into v.
// It tries an exact decode first and falls back to Repair.
func Decode(raw []byte, v any) error {
	text, err := ExtractJSON(string(raw))
	if err != nil {
		return err
	}
	if err := UnmarshalFlex([]byte(text), v); err == nil {
		return nil
	}
	repaired := Repair(text)
	if err := UnmarshalFlex([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnrepairable, err)
	}
	return nil
}
