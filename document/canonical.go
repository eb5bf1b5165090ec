package document

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/mikael1979/filu-x/fxerr"
)

// Fields is the generic in-memory form of a signed document: a JSON object
// restricted to string, int64, bool, nil, []any and nested map[string]string
// values. Floats are rejected at parse time so that the canonical form can
// never depend on platform number formatting.
type Fields map[string]any

// SignatureKey is the one key excluded from the canonical signing scope.
const SignatureKey = "signature"

// CanonicalBytes is the mandatory canonicalization choke point.
//
// It renders fields as canonical JSON: object keys sorted bytewise, no
// insignificant whitespace, minimal string escapes, base-10 integers, and the
// top-level "signature" key excluded. These exact bytes are the input to
// signing, verification and nothing else; any divergence between signer and
// verifier silently breaks interoperability.
func CanonicalBytes(fields Fields) ([]byte, error) {
	scope := make(Fields, len(fields))
	for k, v := range fields {
		if k == SignatureKey {
			continue
		}
		scope[k] = v
	}
	buf, err := appendValue(nil, scope)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Parse decodes wire bytes into Fields. Wire bytes need not be canonical
// (only the signing scope is); any valid JSON object with integer-only
// numbers is accepted.
func Parse(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fxerr.Wrap(fxerr.KindMalformed, "FX-DOC-001", "document is not a JSON object", err)
	}
	// "null" decodes into a nil map without error.
	if raw == nil {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-001", "document is not a JSON object")
	}
	// Reject trailing garbage after the object.
	if dec.More() {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-002", "trailing data after document")
	}
	v, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	return Fields(v.(map[string]any)), nil
}

// Encode renders fields as wire bytes, signature included. The output happens
// to be canonical apart from the signature key, which keeps stored documents
// byte-stable across republish cycles.
func Encode(fields Fields) ([]byte, error) {
	return appendValue(nil, map[string]any(fields))
}

func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string:
		return val, nil
	case json.Number:
		n, err := strconv.ParseInt(val.String(), 10, 64)
		if err != nil {
			return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-003", "non-integer number "+val.String())
		}
		return n, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			if !utf8.ValidString(k) {
				return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-004", "invalid UTF-8 key")
			}
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-005", "unsupported value type")
	}
}

func appendValue(buf []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if val {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case int:
		return strconv.AppendInt(buf, int64(val), 10), nil
	case int64:
		return strconv.AppendInt(buf, val, 10), nil
	case string:
		return appendString(buf, val), nil
	case []any:
		buf = append(buf, '[')
		for i, e := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendValue(buf, e)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case Fields:
		return appendValue(buf, map[string]any(val))
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendString(buf, k)
			buf = append(buf, ':')
			var err error
			buf, err = appendValue(buf, val[k])
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, fxerr.New(fxerr.KindInternal, "FX-DOC-006", "value not representable in canonical form")
	}
}

// appendString emits the minimal JSON escape of s: quote, backslash and
// control characters only. Non-ASCII text passes through as UTF-8.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			if r < 0x20 {
				const hex = "0123456789abcdef"
				buf = append(buf, '\\', 'u', '0', '0', hex[r>>4], hex[r&0xF])
			} else {
				buf = utf8.AppendRune(buf, r)
			}
		}
	}
	return append(buf, '"')
}
