package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the single JSON object in a model reply. A reply that is
// already a bare object is returned as-is; otherwise a ```json fenced block
// wins, and failing that the one balanced object embedded in prose.
func ExtractJSON(output string) (string, error) {
	trimmed := strings.TrimSpace(output)
	if isJSONObject(trimmed) {
		return trimmed, nil
	}

	if block, ok, err := extractFencedJSON(output); err != nil {
		return "", err
	} else if ok {
		if !isJSONObject(block) {
			return "", fmt.Errorf("%w: fenced block is not a JSON object", ErrMalformedResponse)
		}
		return block, nil
	}

	objects := findJSONObjects(output)
	switch len(objects) {
	case 0:
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	case 1:
		return objects[0], nil
	default:
		return "", fmt.Errorf("%w: %d JSON objects found, expected one", ErrMalformedResponse, len(objects))
	}
}

func extractFencedJSON(output string) (string, bool, error) {
	var blocks []string
	rest := output
	for {
		open := strings.Index(rest, "```")
		if open == -1 {
			break
		}
		rest = rest[open+3:]

		lineEnd := strings.IndexByte(rest, '\n')
		if lineEnd == -1 {
			break
		}
		lang := strings.TrimSpace(rest[:lineEnd])
		rest = rest[lineEnd+1:]

		closeIdx := strings.Index(rest, "```")
		if closeIdx == -1 {
			break
		}
		body := rest[:closeIdx]
		rest = rest[closeIdx+3:]

		if lang == "" || strings.EqualFold(lang, "json") {
			blocks = append(blocks, strings.TrimSpace(body))
		}
	}

	switch len(blocks) {
	case 0:
		return "", false, nil
	case 1:
		return blocks[0], true, nil
	default:
		return "", true, fmt.Errorf("%w: %d fenced JSON blocks found, expected one", ErrMalformedResponse, len(blocks))
	}
}

func findJSONObjects(output string) []string {
	var objs []string
	var start int
	inString := false
	escape := false
	depth := 0

	for i, r := range output {
		if escape {
			escape = false
			continue
		}
		if r == '\\' && inString {
			escape = true
			continue
		}
		if r == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if candidate := output[start : i+1]; isJSONObject(candidate) {
					objs = append(objs, candidate)
				}
			}
		}
	}
	return objs
}

func isJSONObject(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(candidate, "{") || !strings.HasSuffix(candidate, "}") {
		return false
	}
	return json.Valid([]byte(candidate))
}
