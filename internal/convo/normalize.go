// Package convo normalizes heterogeneous chat-history messages into the
// canonical {role, content} shape the memory service expects.
package convo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is a normalized conversation message. Role is always "user" or
// "assistant"; Content is always non-empty after trimming.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt any    `json:"created_at,omitempty"`
}

// Normalize converts an arbitrary decoded JSON value into normalized
// messages. Non-list input yields an empty slice; it never fails.
//
// Rules:
//   - system/tool/function messages are dropped
//   - messages whose extracted content trims to empty are dropped
//   - unknown roles (e.g. "participant" in group chats) become "user",
//     with the speaker name prefixed onto the content when present
//   - input ordering is preserved
func Normalize(conversation any) []Message {
	list, ok := conversation.([]any)
	if !ok {
		return nil
	}

	var out []Message
	for _, elem := range list {
		m, ok := elem.(map[string]any)
		if !ok {
			continue
		}

		role := strings.ToLower(strings.TrimSpace(stringOr(m["role"])))
		if role == "system" || role == "tool" || role == "function" {
			continue
		}

		content := extractText(m["content"])
		if strings.TrimSpace(content) == "" {
			continue
		}

		if role != "user" && role != "assistant" {
			role = "user"
			if name := speakerName(m); name != "" {
				content = name + ": " + content
			}
		}

		nm := Message{Role: role, Content: content}
		if created, ok := m["created_at"]; ok {
			nm.CreatedAt = created
		}
		out = append(out, nm)
	}
	return out
}

// extractText pulls a plain string out of the common content shapes:
// a direct string, a text-bearing object, or a list of content blocks.
func extractText(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		for _, k := range []string{"text", "content", "value"} {
			if s, ok := v[k].(string); ok {
				return s
			}
		}
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprint(v)
	case []any:
		var parts []string
		for _, p := range v {
			switch pv := p.(type) {
			case string:
				if pv != "" {
					parts = append(parts, pv)
				}
			case map[string]any:
				if t, ok := pv["text"].(string); ok && t != "" {
					parts = append(parts, t)
				}
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	default:
		return fmt.Sprint(v)
	}
}

func speakerName(m map[string]any) string {
	for _, k := range []string{"name", "speaker", "author"} {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}
