package pipeline

import (
	"regexp"
	"strings"
)

// OptimizedHeading introduces the rewritten prompt in a prompt analysis.
const OptimizedHeading = "**Optimized Prompt:**"

const headingPattern = `\*\*(?:Optimized Prompt|Gợi ý viết lại \(Prompt được tối ưu hóa\)):?\*\*:?`

var (
	fencedRewrite = regexp.MustCompile(`(?is)` + headingPattern + "\\s*```[a-zA-Z]*\\n(.*?)```")
	looseRewrite  = regexp.MustCompile(`(?is)` + headingPattern + `\s*(.*)`)
	rewriteTail   = regexp.MustCompile(`(?is)(?:\n[ \t]*\d+\.[ \t]*)?` + headingPattern + `.*`)
)

// ExtractOptimized pulls the rewritten prompt out of an analysis. It tries
// the code-fenced section first, then everything after the heading with
// fences removed. ok is false when neither yields text.
func ExtractOptimized(analysis string) (prompt string, ok bool) {
	if m := fencedRewrite.FindStringSubmatch(analysis); m != nil {
		if p := strings.TrimSpace(m[1]); p != "" {
			return p, true
		}
	}
	if m := looseRewrite.FindStringSubmatch(analysis); m != nil {
		p := strings.TrimSpace(strings.ReplaceAll(m[1], "```", ""))
		if p != "" {
			return p, true
		}
	}
	return "", false
}

// StripOptimized removes the rewrite section from an analysis.
func StripOptimized(analysis string) string {
	return strings.TrimSpace(rewriteTail.ReplaceAllString(analysis, ""))
}
