package feed

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/lysyi3m/media-report/app/logger"
)

type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Run extracts the readable text of an HTML article.
func (e *ContentExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := collapseSpaces(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	logger.Log.WithFields(logrus.Fields{
		"title":          article.Title,
		"content_length": len(text),
	}).Debug("Content extracted successfully")

	return text, nil
}

// Text is Run with a tag-stripping fallback for fragments readability rejects.
func (e *ContentExtractor) Text(data []byte) string {
	text, err := e.Run(data)
	if err != nil {
		return StripHTML(string(data))
	}
	return text
}

// StripHTML returns the text nodes of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	var sb strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseSpaces(sb.String())
		case html.TextToken:
			sb.Write(tokenizer.Text())
			sb.WriteByte(' ')
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			sb.WriteByte(' ')
		}
	}
}

// Truncate shortens s to at most limit runes, cutting on a word boundary when
// one is available. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
