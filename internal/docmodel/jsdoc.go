package docmodel

import (
	"strings"
	"unicode"
)

// Tag is one block tag of a JSDoc comment, e.g. @example or @param.
type Tag struct {
	Name string
	Text string
}

// isDocComment reports whether text is a /** ... */ comment.
func isDocComment(text string) bool {
	return strings.HasPrefix(text, "/**") && !strings.HasPrefix(text, "/***") && strings.HasSuffix(text, "*/") && len(text) >= 5
}

// parseTags splits a JSDoc comment into its block tags. The leading "*" of
// each line and one following space are stripped. A tag runs from its name to
// the next line starting with "@".
func parseTags(comment string) []Tag {
	body := strings.TrimSuffix(strings.TrimPrefix(comment, "/**"), "*/")

	var (
		tags    []Tag
		current *Tag
		lines   []string
	)
	flush := func() {
		if current != nil {
			current.Text = tagText(lines)
			tags = append(tags, *current)
		}
		current, lines = nil, nil
	}

	for _, line := range strings.Split(body, "\n") {
		line = stripStar(strings.TrimRight(line, "\r"))
		if name, rest, ok := tagStart(line); ok {
			flush()
			current = &Tag{Name: name}
			lines = []string{rest}
			continue
		}
		if current != nil {
			lines = append(lines, line)
		}
	}
	flush()

	return tags
}

// Examples returns the text of every @example tag in comment, in order.
func Examples(comment string) []string {
	var examples []string
	for _, tag := range parseTags(comment) {
		if tag.Name == "example" {
			examples = append(examples, tag.Text)
		}
	}
	return examples
}

func stripStar(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "*") {
		return line
	}
	trimmed = trimmed[1:]
	return strings.TrimPrefix(trimmed, " ")
}

func tagStart(line string) (name, rest string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) < 2 || trimmed[0] != '@' || !unicode.IsLetter(rune(trimmed[1])) {
		return "", "", false
	}
	end := strings.IndexFunc(trimmed[1:], unicode.IsSpace)
	if end < 0 {
		return trimmed[1:], "", true
	}
	return trimmed[1 : end+1], strings.TrimPrefix(trimmed[end+1:], " "), true
}

// tagText joins a tag's lines, drops blank edges and unwraps a fenced code
// block if the whole tag is one.
func tagText(lines []string) string {
	text := strings.Trim(strings.Join(lines, "\n"), "\n")
	text = strings.TrimRight(text, " \t\n")

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") && strings.HasSuffix(trimmed, "```") && len(trimmed) > 6 {
		inner := strings.TrimSuffix(trimmed, "```")
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
			return strings.Trim(inner[nl+1:], "\n")
		}
	}
	return text
}
