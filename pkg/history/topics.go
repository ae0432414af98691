package history

import (
	"strings"

	"github.com/aixgo-dev/dailyagent/pkg/session"
)

// Confidence is a fixed label attached to a detected topic.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
)

// Topic labels reported by KeywordClassifier.
const (
	TopicFinancial = "Financial/Market Data"
	TopicCalendar  = "Calendar/Schedule"
	TopicTasks     = "Tasks/Todos"
)

// Topic is a coarse subject the conversation has touched.
type Topic struct {
	Label      string
	Confidence Confidence
}

// TopicClassifier detects what recent messages are about. Implementations
// return topics in a stable order and must tolerate an empty slice.
type TopicClassifier interface {
	Classify(messages []session.Message) []Topic
}

// ClassifierFunc adapts a function to TopicClassifier.
type ClassifierFunc func(messages []session.Message) []Topic

// Classify calls f.
func (f ClassifierFunc) Classify(messages []session.Message) []Topic {
	return f(messages)
}

type keywordRule struct {
	label      string
	confidence Confidence
	phrases    []string
}

func (r keywordRule) matches(lower string) bool {
	for _, p := range r.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Every matching user rule applies.
var userRules = []keywordRule{
	{TopicFinancial, High, []string{"what stock", "stock instruments", "tracking", "financial", "market", "crypto", "price", "portfolio", "investment"}},
	{TopicCalendar, High, []string{"events", "calendar", "schedule", "meeting", "appointment", "today"}},
	{TopicTasks, High, []string{"tasks", "todo", "pending", "work", "errands", "personal"}},
}

// Only the first matching assistant rule applies.
var assistantRules = []keywordRule{
	{TopicFinancial, High, []string{"instruments tracked", "7 instruments"}},
	{TopicCalendar, Medium, []string{"event scheduled", "calendar"}},
	{TopicTasks, Medium, []string{"pending tasks", "todo"}},
}

const (
	userLookback      = 3
	assistantLookback = 2
)

// KeywordClassifier matches fixed phrase clusters in the last three user
// messages and the last two assistant messages. User messages are scanned
// first, then assistant messages; a later match of a topic overwrites the
// confidence of an earlier one while the topic keeps its first position.
type KeywordClassifier struct{}

// Classify implements TopicClassifier.
func (KeywordClassifier) Classify(messages []session.Message) []Topic {
	var users, assistants []string
	for _, m := range messages {
		switch m.Role {
		case session.RoleUser:
			users = append(users, m.Content)
		case session.RoleAssistant:
			assistants = append(assistants, m.Content)
		}
	}

	var set topicSet
	for _, q := range tail(users, userLookback) {
		lower := strings.ToLower(q)
		for _, rule := range userRules {
			if rule.matches(lower) {
				set.put(rule.label, rule.confidence)
			}
		}
	}
	for _, r := range tail(assistants, assistantLookback) {
		lower := strings.ToLower(r)
		for _, rule := range assistantRules {
			if rule.matches(lower) {
				set.put(rule.label, rule.confidence)
				break
			}
		}
	}
	return set.topics
}

// topicSet is an insertion-ordered label -> confidence map.
type topicSet struct {
	topics []Topic
}

func (s *topicSet) put(label string, c Confidence) {
	for i := range s.topics {
		if s.topics[i].Label == label {
			s.topics[i].Confidence = c
			return
		}
	}
	s.topics = append(s.topics, Topic{Label: label, Confidence: c})
}

func tail[T any](items []T, n int) []T {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
