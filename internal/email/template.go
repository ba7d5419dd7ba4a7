package email

import (
	"html/template"
	"strings"

	"github.com/ai-daily/newsdigest/internal/model"
)

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 640px; margin: 0 auto;">
  <h1 style="font-size: 20px;">Your digest{{if .UserName}}, {{.UserName}}{{end}}</h1>
  <p style="color: #666;">{{.Date}} · {{len .Items}} stories</p>
  {{range .Items}}
  <div style="margin-bottom: 24px; border-bottom: 1px solid #eee; padding-bottom: 16px;">
    <h2 style="font-size: 16px; margin-bottom: 4px;"><a href="{{.URL}}" style="color: #1a56db;">{{.Title}}</a></h2>
    <p style="color: #888; font-size: 12px; margin: 0 0 8px;">{{.SourceLabel}}{{if .Topic}} · {{.Topic}}{{end}}</p>
    <p style="margin: 0;">{{.Summary}}</p>
  </div>
  {{end}}
  <p style="font-size: 12px; color: #888;">
    <a href="{{.PreferencesURL}}">Preferences</a> · <a href="{{.UnsubscribeURL}}">Unsubscribe</a>
  </p>
</body>
</html>`))

func renderDigestHTML(digest *model.Digest, userName, baseURL string) (string, error) {
	data := struct {
		UserName       string
		Date           string
		Items          []model.DigestItem
		PreferencesURL string
		UnsubscribeURL string
	}{
		UserName:       userName,
		Date:           digest.GeneratedAt.Format("Monday, Jan 2"),
		Items:          digest.Items,
		PreferencesURL: baseURL + "/settings",
		UnsubscribeURL: baseURL + "/settings?tab=delivery",
	}

	var out strings.Builder
	if err := digestTemplate.Execute(&out, data); err != nil {
		return "", err
	}

	return out.String(), nil
}
