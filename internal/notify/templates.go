package notify

import (
	"bytes"
	"html/template"

	"github.com/soaringjerry/Vigil/internal/services"
	"github.com/soaringjerry/Vigil/internal/utils"
)

var resultsTmpl = template.Must(template.New("results").Parse(`<!doctype html>
<html lang="{{.Locale}}"><body style="font-family:Arial,sans-serif;color:#1f2937">
<p>{{.Greeting}} {{.Name}},</p>
<p>{{.Intro}} <strong>{{.Score}}</strong> ({{.TypeLabel}}).</p>
<p><a href="{{.URL}}" style="background:#0f766e;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none">{{.CTA}}</a></p>
<p>{{.CodeLabel}}: <code>{{.AccessCode}}</code></p>
</body></html>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<!doctype html>
<html lang="{{.Locale}}"><body style="font-family:Arial,sans-serif;color:#1f2937">
<p>{{.Greeting}} {{.Name}},</p>
<p>{{.Body}}</p>
{{if .URL}}<p><a href="{{.URL}}">{{.CTA}}</a></p>{{end}}
</body></html>`))

type rendered struct {
	Subject string
	HTML    string
}

func renderResults(msg services.ResultMessage) (rendered, error) {
	loc := msg.Locale
	data := map[string]any{
		"Locale":     localeOrDefault(loc),
		"Greeting":   utils.T(loc, "email.results.greeting"),
		"Name":       msg.DisplayName,
		"Intro":      utils.T(loc, "email.results.intro"),
		"Score":      msg.Score,
		"TypeLabel":  utils.T(loc, "evaluation.type."+string(msg.Type)),
		"URL":        template.URL(msg.ResultsURL),
		"CTA":        utils.T(loc, "email.results.cta"),
		"CodeLabel":  utils.T(loc, "email.results.code"),
		"AccessCode": msg.AccessCode,
	}
	var buf bytes.Buffer
	if err := resultsTmpl.Execute(&buf, data); err != nil {
		return rendered{}, err
	}
	return rendered{Subject: utils.T(loc, "email.results.subject"), HTML: buf.String()}, nil
}

func renderWelcome(msg services.WelcomeMessage) (rendered, error) {
	loc := msg.Locale
	data := map[string]any{
		"Locale":   localeOrDefault(loc),
		"Greeting": utils.T(loc, "email.welcome.greeting"),
		"Name":     msg.DisplayName,
		"Body":     utils.T(loc, "email.welcome.body"),
		"URL":      msg.SiteURL,
		"CTA":      utils.T(loc, "email.welcome.cta"),
	}
	var buf bytes.Buffer
	if err := welcomeTmpl.Execute(&buf, data); err != nil {
		return rendered{}, err
	}
	return rendered{Subject: utils.T(loc, "email.welcome.subject"), HTML: buf.String()}, nil
}

func localeOrDefault(l string) string {
	if l == "" {
		return "en"
	}
	return l
}
