package openai

import (
	"strings"

	"github.com/tidwall/gjson"

	"farmdata-backend/internal/llm"
)

// textPaths are tried in order; the first non-empty string wins.
var textPaths = []func(gjson.Result) string{
	func(r gjson.Result) string { return stringAt(r, "choices.0.message.content") },
	func(r gjson.Result) string { return partsAt(r, "choices.0.message.content") },
	func(r gjson.Result) string { return stringAt(r, "choices.0.content") },
	func(r gjson.Result) string { return partsAt(r, "choices.0.content") },
	func(r gjson.Result) string { return stringAt(r, "output_text") },
}

// ExtractText pulls reply text from a chat completion body of any known shape.
// It never fails; an unknown or malformed body yields "".
func ExtractText(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	root := gjson.ParseBytes(body)
	for _, path := range textPaths {
		if text := path(root); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

// ExtractUsage normalizes token counts across provider naming schemes.
func ExtractUsage(body []byte) llm.Usage {
	if !gjson.ValidBytes(body) {
		return llm.Usage{}
	}
	usage := gjson.GetBytes(body, "usage")

	u := llm.Usage{
		InputTokens:     firstInt(usage, "input_tokens", "prompt_tokens"),
		OutputTokens:    firstInt(usage, "output_tokens", "completion_tokens"),
		ReasoningTokens: firstInt(usage, "reasoning_tokens", "completion_tokens_details.reasoning_tokens", "output_tokens_details.reasoning_tokens"),
	}
	if total := usage.Get("total_tokens"); total.Exists() && total.Type == gjson.Number {
		u.TotalTokens = nonNegative(total.Int())
	} else {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

func stringAt(root gjson.Result, path string) string {
	v := root.Get(path)
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

func partsAt(root gjson.Result, path string) string {
	v := root.Get(path)
	if !v.IsArray() {
		return ""
	}
	var parts []string
	v.ForEach(func(_, part gjson.Result) bool {
		switch {
		case part.Type == gjson.String:
			parts = append(parts, part.String())
		case part.IsObject():
			if text := part.Get("text"); text.Type == gjson.String {
				parts = append(parts, text.String())
			}
		}
		return true
	})
	return strings.Join(parts, "")
}

func firstInt(usage gjson.Result, paths ...string) int {
	for _, p := range paths {
		if v := usage.Get(p); v.Exists() && v.Type == gjson.Number {
			return nonNegative(v.Int())
		}
	}
	return 0
}

func nonNegative(v int64) int {
	if v < 0 {
		return 0
	}
	return int(v)
}
