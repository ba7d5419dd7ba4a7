package source

import "strings"

// topicRules are evaluated in order; the first rule with any matching
// needle tags the item, later rules are ignored (no multi-tagging).
var topicRules = []struct {
	needles []string
	topic   string
}{
	{[]string{"llm", "language model"}, "LLM"},
	{[]string{"vision"}, "Computer Vision"},
	{[]string{"robot"}, "Robotics"},
	{[]string{"regulation", "policy"}, "AI Policy"},
	{[]string{"agent"}, "Agents"},
}

// ExtractTopic infers a coarse category from an entry title.
// Returns "" when no rule matches.
func ExtractTopic(title string) string {
	lowered := strings.ToLower(title)

	for _, rule := range topicRules {
		for _, needle := range rule.needles {
			if strings.Contains(lowered, needle) {
				return rule.topic
			}
		}
	}

	return ""
}
