package provider

import (
	"fmt"
	"strings"
)

func summaryPrompt(req SummarizeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following document in at most %d characters. ", req.MaxLength)
	b.WriteString("Capture the key facts and intent. Respond with the summary only, no preamble.\n")
	if req.Context != "" {
		b.WriteString("\n")
		b.WriteString(req.Context)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(req.Content)
	return b.String()
}

// clampSummary trims model output to the requested length, cutting at a
// rune boundary and marking the truncation.
func clampSummary(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
