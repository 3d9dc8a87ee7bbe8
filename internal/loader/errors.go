package loader

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// BuildError reports that a module could not be bundled.
type BuildError struct {
	Path     string
	Messages []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to bundle %s:\n  %s", e.Path, strings.Join(e.Messages, "\n  "))
}

func messages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location == nil {
			out = append(out, msg.Text)
			continue
		}
		out = append(out, fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text))
	}
	return out
}
