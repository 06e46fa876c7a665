package chat

import (
	"regexp"
	"strings"

	"github.com/inkawebai/inkaweb-backend/internal/models"
)

// Turn is a single conversation message as submitted by the client.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// projectNamePattern picks the message most likely to name the project.
var projectNamePattern = regexp.MustCompile(`(?i)project|name`)

// FormatRequirements compiles the project requirements digest from all
// user-authored turns.
func FormatRequirements(turns []Turn) string {
	var userTexts []string
	for _, turn := range turns {
		if turn.Sender == models.SenderUser {
			userTexts = append(userTexts, turn.Text)
		}
	}
	return "Collected Requirements from Chat Conversation:\n\n" + strings.Join(userTexts, "\n\n")
}

// ProjectName picks a subject line for the requirements email from the
// conversation, falling back to a generic name.
func ProjectName(turns []Turn) string {
	for _, turn := range turns {
		if projectNamePattern.MatchString(turn.Text) {
			return turn.Text
		}
	}
	return "Web Development Project"
}

// FirstUserTurn returns the first user-authored turn, if any.
func FirstUserTurn(turns []Turn) (Turn, bool) {
	for _, turn := range turns {
		if turn.Sender == models.SenderUser {
			return turn, true
		}
	}
	return Turn{}, false
}

// LastUserTurn returns the most recent user-authored turn, if any.
func LastUserTurn(turns []Turn) (Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Sender == models.SenderUser {
			return turns[i], true
		}
	}
	return Turn{}, false
}
