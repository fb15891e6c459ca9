package dashboard

import (
	"github.com/charmbracelet/glamour"
)

const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// renderMarkdown renders a task description for the detail viewport,
// wrapped to width. A fresh renderer is built per call since width
// changes with the terminal size.
func renderMarkdown(body string, width int) (string, error) {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(body)
}
