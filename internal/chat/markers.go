package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// navigationMarker matches the payment redirect marker, e.g. "[GO_STRIPE 2500]".
// The amount, in cents, is optional.
var navigationMarker = regexp.MustCompile(`(?i)\[GO_STRIPE(?:\s+(\d+))?\]`)

// confirmationMarker signals that requirements collection is complete.
const confirmationMarker = "[CONFIRMED_PROCEED]"

// defaultNavigateCents is used when the navigation marker carries no amount.
const defaultNavigateCents = 5000

// ExtractNavigation strips a navigation marker from the reply text and
// returns the payment page URL it points at.
func ExtractNavigation(text string) (clean string, navigateURL string, found bool) {
	match := navigationMarker.FindStringSubmatch(text)
	if match == nil {
		return text, "", false
	}

	cents := defaultNavigateCents
	if match[1] != "" {
		if parsed, errParse := strconv.Atoi(match[1]); errParse == nil {
			cents = parsed
		}
	}

	clean = strings.TrimSpace(strings.Replace(text, match[0], "", 1))
	return clean, fmt.Sprintf("/stripe?amount=%d", cents), true
}

// ExtractConfirmation strips the confirmation marker from the reply text and
// reports whether it was present.
func ExtractConfirmation(text string) (clean string, found bool) {
	if !strings.Contains(text, confirmationMarker) {
		return text, false
	}
	return strings.TrimSpace(strings.Replace(text, confirmationMarker, "", 1)), true
}
