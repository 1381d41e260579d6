package dialogue

import "strings"

// Generation output labels. The generator is instructed to emit exactly two
// labeled lines; real providers drift, so parsing is defensive.
const (
	replyLabel  = "REPLY:"
	memoryLabel = "MEMORY:"
)

// ParseResult is the tagged outcome of parsing generator output.
// When Parsed is false the entire raw output is the reply and the session
// memory is left unchanged.
type ParseResult struct {
	Parsed bool
	Reply  string
	Memory string
}

// ParseTwoLine extracts the reply and memory digest from generator output.
// It never fails: missing or mangled labels degrade to raw-as-reply.
func ParseTwoLine(raw string) ParseResult {
	raw = strings.TrimSpace(raw)
	lines := strings.Split(raw, "\n")

	var replyParts, memoryParts []string
	section := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, replyLabel):
			section = "reply"
			if rest := strings.TrimSpace(trimmed[len(replyLabel):]); rest != "" {
				replyParts = append(replyParts, rest)
			}
		case strings.HasPrefix(upper, memoryLabel):
			section = "memory"
			if rest := strings.TrimSpace(trimmed[len(memoryLabel):]); rest != "" {
				memoryParts = append(memoryParts, rest)
			}
		case section == "reply" && trimmed != "":
			replyParts = append(replyParts, trimmed)
		case section == "memory" && trimmed != "":
			memoryParts = append(memoryParts, trimmed)
		}
	}

	reply := strings.Join(replyParts, " ")
	if reply == "" {
		return ParseResult{Parsed: false, Reply: raw}
	}
	return ParseResult{Parsed: true, Reply: reply, Memory: strings.Join(memoryParts, " ")}
}

// capText truncates s to at most max bytes on a rune boundary.
func capText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > max {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
