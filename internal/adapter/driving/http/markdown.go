package httphandler

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
	textStripper  *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
	textStripper = bluemonday.StrictPolicy()
}

// renderNotes converts credential notes from markdown to sanitized HTML.
// Returns empty string for empty input.
func renderNotes(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

var errMarkupNotAllowed = apperr.Validation("markup_not_allowed", "field must be plain text")

// plainText trims s and rejects it when stripping tags would change it.
// Stray angle brackets and ampersands such as "<3" or "Tom & Jerry" are text
// and pass unchanged.
func plainText(field, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if html.UnescapeString(textStripper.Sanitize(s)) != html.UnescapeString(s) {
		return "", errMarkupNotAllowed.WithDetails(field)
	}
	return strings.TrimSpace(s), nil
}

func plainTextPtr(field string, s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v, err := plainText(field, *s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
