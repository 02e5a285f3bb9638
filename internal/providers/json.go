package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON unmarshals an LLM answer into target. Models often wrap JSON in
// Markdown fences or a sentence of prose; both are stripped before a second
// attempt.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	cleaned := extractJSON(trimmed)
	if cleaned == "" || cleaned == trimmed {
		return fmt.Errorf("%w (payload: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("%w (cleaned payload: %s)", err, snippet(cleaned))
	}
	return nil
}

func extractJSON(content string) string {
	body := stripFence(content)
	if body == "" {
		return ""
	}
	if body[0] == '{' || body[0] == '[' {
		return body
	}

	// Take whichever structure opens first so an array is not reduced to its
	// first element.
	open := strings.IndexAny(body, "[{")
	if open < 0 {
		return body
	}
	closer := "}"
	if body[open] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(body, closer); end > open {
		return strings.TrimSpace(body[open : end+1])
	}
	return body
}

func stripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
