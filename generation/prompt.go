package generation

import "strings"

// DefaultPromptTemplate frames the question for the upstream model.
const DefaultPromptTemplate = "Solve this step-by-step: %s"

// BuildPrompt substitutes question for the first %s in template. The
// template is not a format string: other % signs are kept as written. A
// template without %s is used as a prefix.
func BuildPrompt(template string, question string) string {
	if template == "" {
		return question
	}
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", question, 1)
	}
	return template + question
}
