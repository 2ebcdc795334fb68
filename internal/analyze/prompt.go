package analyze

import (
	"fmt"
	"strings"
)

const analysisPrompt = `Analyze the following text, taken from a technical article, for a technology watch knowledge base.

IMPORTANT INSTRUCTIONS:
- Reply ONLY with one valid JSON object (no text before or after it)
- Do not change the JSON structure below
- Make sure the JSON is parseable
- Tags must be relevant and short
- The category must be EXACTLY ONE of: [%s]
- The summary must be between 300 and 500 words
- Write the title and the summary in %s

Expected JSON format:
{
    "title": "Relevant title",
    "summary": "Detailed summary of the content...",
    "tags": ["tag1", "tag2", "tag3"],
    "category": "Category name"
}`

// BuildPrompt renders the single-turn analysis prompt. The user's note and
// tags are hints to weave in, not values to copy.
func BuildPrompt(in Input, language string) string {
	if language == "" {
		language = "français"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, analysisPrompt, strings.Join(Categories, ", "), language)

	if in.Note != "" || len(in.Tags) > 0 {
		sb.WriteString("\n\nContext from the person who saved this link (take it into account in the summary and the tags, without copying it verbatim):\n")
		if in.Note != "" {
			fmt.Fprintf(&sb, "Note: %s\n", in.Note)
		}
		if len(in.Tags) > 0 {
			fmt.Fprintf(&sb, "Suggested tags: %s\n", strings.Join(in.Tags, ", "))
		}
	}

	sb.WriteString("\n\nText to analyze:\n")
	sb.WriteString(in.Text)
	sb.WriteString("\n\n---\nSource: ")
	sb.WriteString(in.URL)
	sb.WriteString("\n")
	return sb.String()
}
