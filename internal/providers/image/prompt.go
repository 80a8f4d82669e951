package image

import "strings"

const promptHeader = "Generate an ad image according to the following information:"

// BuildPrompt renders the brief into the instruction sent to providers.
// Optional lines are omitted when empty.
func BuildPrompt(b Brief) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	sb.WriteString("\n\n")
	writeLine(&sb, "Prompt", b.Prompt)
	writeLine(&sb, "Target Audience", b.TargetAudience)
	writeLine(&sb, "Brand Information", b.BrandInfo)
	if s := strings.TrimSpace(b.Style); s != "" {
		writeLine(&sb, "Style Preferences", s)
	}
	if l := strings.TrimSpace(b.Locale); l != "" {
		writeLine(&sb, "Locale", l)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeLine(sb *strings.Builder, label, value string) {
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(strings.TrimSpace(value))
	sb.WriteByte('\n')
}
