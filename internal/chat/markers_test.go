package chat

import "testing"

func TestExtractNavigation(t *testing.T) {
	clean, url, found := ExtractNavigation("Great, let's proceed. [GO_STRIPE 2500]")
	if !found {
		t.Fatalf("expected marker to be found")
	}
	if url != "/stripe?amount=2500" {
		t.Fatalf("expected url /stripe?amount=2500, got %q", url)
	}
	if clean != "Great, let's proceed." {
		t.Fatalf("expected marker stripped, got %q", clean)
	}
}

func TestExtractNavigation_DefaultAmount(t *testing.T) {
	_, url, found := ExtractNavigation("Pay here [go_stripe]")
	if !found {
		t.Fatalf("expected case-insensitive match")
	}
	if url != "/stripe?amount=5000" {
		t.Fatalf("expected default amount 5000, got %q", url)
	}
}

func TestExtractNavigation_NoMarker(t *testing.T) {
	clean, url, found := ExtractNavigation("Just chatting")
	if found || url != "" || clean != "Just chatting" {
		t.Fatalf("expected passthrough, got %q %q %v", clean, url, found)
	}
}

func TestExtractConfirmation(t *testing.T) {
	clean, found := ExtractConfirmation("All set. [CONFIRMED_PROCEED]")
	if !found {
		t.Fatalf("expected marker to be found")
	}
	if clean != "All set." {
		t.Fatalf("expected marker stripped, got %q", clean)
	}

	if _, found = ExtractConfirmation("nothing here"); found {
		t.Fatalf("expected no marker")
	}
}

func TestFormatRequirements(t *testing.T) {
	turns := []Turn{
		{Sender: "user", Text: "I need a landing page"},
		{Sender: "bot", Text: "Tell me more"},
		{Sender: "user", Text: "Two sections and a contact form"},
	}
	got := FormatRequirements(turns)
	want := "Collected Requirements from Chat Conversation:\n\nI need a landing page\n\nTwo sections and a contact form"
	if got != want {
		t.Fatalf("unexpected digest:\n%q", got)
	}
}

func TestProjectName(t *testing.T) {
	turns := []Turn{
		{Sender: "user", Text: "hello"},
		{Sender: "user", Text: "The project name is Atlas"},
	}
	if got := ProjectName(turns); got != "The project name is Atlas" {
		t.Fatalf("unexpected project name %q", got)
	}
	if got := ProjectName([]Turn{{Sender: "user", Text: "hi"}}); got != "Web Development Project" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
