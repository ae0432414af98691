// Package history turns a session's recent messages into the context block
// that is prepended to a language-model prompt.
package history

import (
	"fmt"
	"strings"

	"github.com/aixgo-dev/dailyagent/pkg/session"
)

// DefaultLimit is the number of recent messages rendered.
const DefaultLimit = 10

const (
	// Messages considered for topic detection, from the end of the window
	themeWindow = 6
	// Runes of the offering message quoted in flow guidance
	offerQuoteLen = 150
)

// offerPhrases mark an assistant message that asked a question or offered
// more help, so a terse reply like "yes" most likely answers it.
var offerPhrases = []string{
	"would you like",
	"do you want",
	"let me know",
	"just ask",
	"feel free",
	"please let me know",
	"i can provide",
	"can provide more details",
	"can provide more",
}

const rulesBlock = `IMPORTANT CONTEXT RULES:
1. When the user asks about "this", "that", "it", or uses pronouns, they refer to specific items mentioned above
2. When the user gives short responses like "yes", "please", "sure", "no", they are likely responding to my last question or offer
3. Use this history to understand conversational flow and provide contextual responses, not generic information`

// Formatter renders conversation context. It is stateless and safe for
// concurrent use.
type Formatter struct {
	limit      int
	classifier TopicClassifier
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithLimit sets how many recent messages are rendered.
func WithLimit(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.limit = n
		}
	}
}

// WithClassifier replaces the keyword topic heuristics. A nil classifier
// disables theme hints.
func WithClassifier(c TopicClassifier) Option {
	return func(f *Formatter) { f.classifier = c }
}

// NewFormatter creates a Formatter with a 10 message window and keyword
// topic detection.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		limit:      DefaultLimit,
		classifier: KeywordClassifier{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Limit returns the message window size.
func (f *Formatter) Limit() int {
	return f.limit
}

// Format renders the last Limit messages with the context rules, plus flow
// guidance and theme hints when they apply. It returns "" for no messages.
func (f *Formatter) Format(messages []session.Message) string {
	if len(messages) == 0 {
		return ""
	}
	window := tail(messages, f.limit)

	var b strings.Builder
	b.WriteString("\nCONVERSATION HISTORY (most relevant for understanding context):\n")
	for i, m := range window {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] %s: %s", i+1, speaker(m.Role), m.Content)
	}
	b.WriteString("\n\n")
	b.WriteString(rulesBlock)
	b.WriteString(flowGuidance(window))
	b.WriteString(f.themeHints(tail(window, themeWindow)))
	return b.String()
}

// speaker labels anything that is not the user as the assistant.
func speaker(r session.Role) string {
	if r == session.RoleUser {
		return "User"
	}
	return "Assistant"
}

// flowGuidance quotes the latest assistant message if it made an offer.
func flowGuidance(window []session.Message) string {
	last := lastAssistant(window)
	if last == nil || !HasOffer(last.Content) {
		return ""
	}

	quote := last.Content
	if r := []rune(quote); len(r) > offerQuoteLen {
		quote = string(r[:offerQuoteLen])
	}
	return "\n\nCONVERSATIONAL FLOW: The user's last response may be answering a question or responding to an offer \n" +
		"I made in my previous message: \"" + quote + "...\" \n" +
		`Consider if their response like "yes", "please", "sure", "no thanks", "provide all", "show me" relates to this context.`
}

func (f *Formatter) themeHints(recent []session.Message) string {
	if f.classifier == nil {
		return ""
	}
	topics := f.classifier.Classify(recent)
	if len(topics) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nCONVERSATION THEMES: Based on recent discussion, the user has been asking about:\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "- %s (confidence: %s)\n", t.Label, t.Confidence)
	}
	b.WriteString("If the user asks for 'all of them', 'details', 'more info', consider what topic they were most recently discussing.")
	return b.String()
}

// HasOffer reports whether text contains offer or question phrasing.
func HasOffer(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range offerPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func lastAssistant(messages []session.Message) *session.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == session.RoleAssistant {
			return &messages[i]
		}
	}
	return nil
}
