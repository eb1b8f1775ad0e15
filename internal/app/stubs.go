package app

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/ryuka-api/ryuka/internal/provider"
)

// Placeholder content served by the stub endpoints. None of them call out.
const (
	placeholderImageBase = "https://via.placeholder.com/1024x1024.png?text="
	SampleVideoURL       = "https://sample-videos.com/video123/mp4/240/big_buck_bunny_240p_1mb.mp4"
	SampleVideoNote      = "This is a placeholder sample video. For real AI video generation, integrate a video generation service."

	// maxImageLabel bounds the prompt text embedded in a placeholder image URL.
	maxImageLabel = 60
)

// chatRule maps prompt keywords to a canned reply; the first match wins.
type chatRule struct {
	keywords []string
	reply    string
}

var chatRules = []chatRule{
	{[]string{"halo", "hello", "hi"}, "Hello! How can I help you today?"},
	{[]string{"siapa kamu", "who are you"}, "I'm Ryuka-API, a lightweight virtual assistant with no connection to external services."},
	{[]string{"tolong", "bantu", "help"}, "Sure, describe your problem briefly."},
	{[]string{"?"}, "That's a good question. Unfortunately I'm only a simple bot that gives generic answers."},
}

// ChatReply returns a deterministic rule-based reply for prompt.
func ChatReply(prompt string) string {
	lower := strings.ToLower(prompt)
	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, rule := range chatRules {
		for _, kw := range rule.keywords {
			// Single words match whole words only, so "hi" does not match "this".
			if strings.ContainsFunc(kw, unicode.IsLetter) && !strings.Contains(kw, " ") {
				if slices.Contains(words, kw) {
					return rule.reply
				}
				continue
			}
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}
	return fmt.Sprintf("You said: %q. Sorry, I'm only a simple bot.", prompt)
}

// PlaceholderImageURL builds a placeholder image URL labelled with the first
// 60 characters of prompt.
func PlaceholderImageURL(prompt string) string {
	label := prompt
	if r := []rune(label); len(r) > maxImageLabel {
		label = string(r[:maxImageLabel])
	}
	return placeholderImageBase + provider.EncodeTarget(label)
}
