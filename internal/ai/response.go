// response.go - Cleaning raw model output before JSON decoding

package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

var errEmptyResponse = errors.New("empty response from Gemini API")

var fencedBlock = regexp.MustCompile("(?s)```(?:[a-zA-Z]+)?\\s*(.*?)```")

// stripCodeFences returns the body of the first markdown fence, or the trimmed input
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	// an opening fence without a closing one
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		return strings.TrimSpace(s)
	}
	return s
}

var jsonString = regexp.MustCompile(`"([^"\\]*(?:\\.[^"\\]*)*)"`)

// fixJSONEscaping escapes raw control characters inside JSON string values.
// Gemini sometimes emits literal newlines inside strings, which encoding/json rejects.
func fixJSONEscaping(jsonStr string) string {
	return jsonString.ReplaceAllStringFunc(jsonStr, func(match string) string {
		content := match[1 : len(match)-1]

		var b strings.Builder
		for _, ch := range content {
			switch ch {
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				if ch < 0x20 {
					fmt.Fprintf(&b, `\u%04x`, ch)
				} else {
					b.WriteRune(ch)
				}
			}
		}
		return `"` + b.String() + `"`
	})
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errEmptyResponse
	}
	return sb.String(), nil
}
