package assess

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnswerKey is the correct answer for a question. Persisted data carries two
// shapes — an option index or the matching option text — so the key is a
// tagged union normalized at decode time instead of sniffed at compare time.
type AnswerKey struct {
	kind keyKind
	idx  int
	text string
}

type keyKind uint8

const (
	keyNone keyKind = iota
	keyIndex
	keyText
)

func IndexKey(i int) AnswerKey   { return AnswerKey{kind: keyIndex, idx: i} }
func TextKey(s string) AnswerKey { return AnswerKey{kind: keyText, text: s} }

// Matches reports whether the selected option index is correct for the given
// option list. Out-of-range indices are simply wrong, never an error.
func (k AnswerKey) Matches(selected int, options []string) bool {
	switch k.kind {
	case keyIndex:
		return selected == k.idx
	case keyText:
		if selected < 0 || selected >= len(options) {
			return false
		}
		return strings.TrimSpace(options[selected]) == strings.TrimSpace(k.text)
	default:
		return false
	}
}

func (k AnswerKey) IsZero() bool { return k.kind == keyNone }

func (k AnswerKey) String() string {
	switch k.kind {
	case keyIndex:
		return strconv.Itoa(k.idx)
	case keyText:
		return k.text
	default:
		return ""
	}
}

// UnmarshalJSON accepts both persisted shapes: a JSON number (index) or a
// JSON string. Numeric strings are still treated as text keys; authoring
// tools quote option labels, not indices.
func (k *AnswerKey) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*k = IndexKey(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*k = TextKey(s)
		return nil
	}
	return fmt.Errorf("answer key: unsupported shape %s", string(b))
}

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	switch k.kind {
	case keyIndex:
		return json.Marshal(k.idx)
	case keyText:
		return json.Marshal(k.text)
	default:
		return []byte("null"), nil
	}
}
