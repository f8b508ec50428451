package usecases

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|yaml|yml|JSON|YAML)?[ \\t]*\\r?\\n(.*?)```")

// decodeStructured decodes an LLM answer into out. Answers may be JSON or YAML,
// bare or wrapped in a Markdown code fence, and may carry prose around a JSON object.
func decodeStructured(raw string, out any) error {
	body := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if body == "" {
		return fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	if body[0] == '{' || body[0] == '[' {
		if err := json.Unmarshal([]byte(body), out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return nil
	}

	yamlErr := yaml.Unmarshal([]byte(body), out)
	if yamlErr == nil && !reflect.ValueOf(out).Elem().IsZero() {
		return nil
	}

	// Prose around a JSON object parses as YAML keys we do not know, or not at all.
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(body[start:end+1]), out); err == nil {
			return nil
		}
	}
	if yamlErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrMalformedOutput, yamlErr)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
