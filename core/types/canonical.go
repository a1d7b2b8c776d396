package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalEncode renders v as UTF-8 JSON with lexicographically sorted
// object keys and no insignificant whitespace — the "canonical encoding" of
// the GLOSSARY. No library in the retrieved corpus performs canonical-JSON
// content addressing (the corpus's own chains content-address via RLP), so
// this encoder is hand-written against encoding/json + sort; see DESIGN.md.
func CanonicalEncode(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canonical encode: %w", err)
		}
		buf.Write(b)
		return nil
	}
}

// CanonicalHash computes "0x" + hex(SHA-256(CanonicalEncode(v))), the
// tx_hash / content-address function defined in spec.md §3.
func CanonicalHash(v interface{}) (string, error) {
	enc, err := CanonicalEncode(v)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(enc)
	return "0x" + fmt.Sprintf("%x", digest), nil
}
