package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// PlainText strips tags and entities from generated or fetched text and
// collapses runs of whitespace to single spaces.
func PlainText(s string) string {
	return strings.Join(strings.Fields(html2text.HTML2Text(s)), " ")
}
