package summary

import (
	"context"
	"net/http"
	"regexp"

	"github.com/go-shiori/go-readability"
)

// readability leaves long runs of blank lines once the HTML tags are
// stripped; collapse anything beyond two newlines.
var redundantNewLines = regexp.MustCompile(`\n{3,}`)

// ExtractReadable fetches a page and returns its readable text
// content. Used to enrich feed entries whose snippet was too thin to
// summarize from.
func ExtractReadable(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", err
	}

	return cleanText(doc.TextContent), nil
}

func cleanText(text string) string {
	return redundantNewLines.ReplaceAllString(text, "\n")
}
