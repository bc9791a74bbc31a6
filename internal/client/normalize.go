package client

import (
	"bytes"
	"encoding/json"
	"strings"
)

// markdownFields is the ordered list of fields probed when extracting the
// verdict from a response body. The list encodes compatibility with a
// service contract that has historically varied; keep it small and in
// priority order.
var markdownFields = []string{"markdown", "result", "output", "output_text", "data", "text"}

// ExtractMarkdown pulls the markdown payload out of an arbitrary JSON or
// plain-text body. It never fails on a well-formed but unexpected shape:
// when no known field matches, the whole body is pretty-printed as a fenced
// code block. Literal \n escape sequences are unescaped to real line breaks
// to defend against double-encoded text.
func ExtractMarkdown(body []byte) string {
	md := extract(bytes.TrimSpace(body))
	return strings.ReplaceAll(md, `\n`, "\n")
}

func extract(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		// Not JSON at all: the body is the payload.
		return string(body)
	}

	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		// An empty string is not a payload; keep probing so a later
		// field (or the fallback) can still supply one.
		for _, field := range markdownFields {
			if s, ok := val[field].(string); ok && s != "" {
				return s
			}
		}
	}

	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body)
	}
	return "```\n" + string(pretty) + "\n```"
}
