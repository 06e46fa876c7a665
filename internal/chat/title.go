// Package chat holds the conversation-processing rules shared by the chat
// endpoints: title derivation, control-marker extraction, and the
// requirements digest compiled from user turns.
package chat

import "strings"

// titleKeyword maps a substring of the first user message to a canned title.
// Order matters: the first match wins.
type titleKeyword struct {
	key   string
	title string
}

var titleKeywords = []titleKeyword{
	{"web", "Web development"},
	{"website", "Web development"},
	{"mobile", "Mobile app"},
	{"e-commerce", "E-commerce"},
	{"ecommerce", "E-commerce"},
	{"shop", "E-commerce"},
	{"api", "API integration"},
	{"chatbot", "Chatbot"},
	{"design", "Design"},
	{"marketing", "Marketing"},
}

const maxTitleLen = 60

// ExtractTitle derives a conversation title from the first user message.
// Known topic keywords take priority; otherwise the first few words of the
// first sentence are used, truncated to 60 characters.
func ExtractTitle(text string) string {
	if text == "" {
		return "New chat"
	}

	lower := strings.ToLower(text)
	for _, kw := range titleKeywords {
		if strings.Contains(lower, kw.key) {
			return kw.title
		}
	}

	firstSentence := text
	if idx := strings.IndexAny(text, ".?!"); idx >= 0 {
		firstSentence = text[:idx]
	}
	firstSentence = strings.TrimSpace(firstSentence)
	if firstSentence == "" {
		firstSentence = strings.TrimSpace(text)
	}

	words := strings.Fields(firstSentence)
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	if title == "" {
		title = firstSentence
	}
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen-3]) + "..."
	}
	return title
}
