package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxErrorText = 300

// errorBodyText turns an error response body into one readable line. JSON
// APIs report a message field; reverse proxies answer with HTML pages.
func errorBodyText(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "empty response"
	}

	if trimmed[0] == '{' {
		var payload struct {
			Message string `json:"message"`
			Error   any    `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &payload); err == nil {
			switch {
			case payload.Message != "":
				return truncate(payload.Message)
			case payload.Error != nil:
				if s, ok := payload.Error.(string); ok {
					return truncate(s)
				}
			}
		}
	}

	if strings.Contains(contentType, "html") || trimmed[0] == '<' {
		if text := htmlText(trimmed); text != "" {
			return truncate(text)
		}
	}
	return truncate(string(trimmed))
}

func htmlText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= maxErrorText {
		return s
	}
	return string([]rune(s)[:maxErrorText]) + "…"
}
