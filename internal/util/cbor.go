/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// RenderCBORPretty renders a generically decoded CBOR item as indented JSON.
func RenderCBORPretty(decoded any) (string, error) {
	normalised, err := NormaliseCBOR(decoded)
	if err != nil {
		return "", err
	}

	pretty, err := json.MarshalIndent(normalised, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

// NormaliseCBOR converts a generically decoded CBOR item into values encoding/json accepts:
// map keys become strings, byte strings become h'..' and tags become {_cborTag, content}.
func NormaliseCBOR(value any) (any, error) {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			norm, err := NormaliseCBOR(elem)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			norm, err := NormaliseCBOR(val)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case map[any]any:
		type entry struct {
			key string
			val any
		}

		entries := make([]entry, 0, len(v))
		for key, val := range v {
			norm, err := NormaliseCBOR(val)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry{key: stringifyCBORKey(key), val: norm})
		}

		// stringified keys may collide, e.g. 1 and "1"
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].key < entries[j].key
		})
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			if _, dup := out[e.key]; dup {
				return nil, fmt.Errorf("ambiguous map key %q", e.key)
			}
			out[e.key] = e.val
		}
		return out, nil
	case []byte:
		return fmt.Sprintf("h'%x'", v), nil
	case cbor.Tag:
		content, err := NormaliseCBOR(v.Content)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"_cborTag": v.Number,
			"content":  content,
		}, nil
	default:
		return v, nil
	}
}

func stringifyCBORKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	case []byte:
		return fmt.Sprintf("h'%x'", k)
	default:
		return fmt.Sprint(k)
	}
}
