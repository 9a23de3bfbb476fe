package mail

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var businessWords = []string{"decision", "meeting", "action item", "professional", "business", "project", "client"}

// IsBusiness reports whether the summary reads like a work call.
func IsBusiness(summary string) bool {
	s := strings.ToLower(summary)
	for _, w := range businessWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Rendered is a ready-to-send recap email.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type view struct {
	Title    string
	Greeting string
	Intro    string
	Accent   string
	Summary  string
	Date     string
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background: {{.Accent}}; color: white; padding: 15px; text-align: center; border-radius: 8px; margin-bottom: 20px; }
  .summary { background: #f9f9f9; padding: 20px; border-radius: 8px; border-left: 4px solid {{.Accent}}; line-height: 1.7; }
  .footer { margin-top: 20px; color: #666; font-size: 14px; text-align: center; }
</style>
</head>
<body>
  <div class="header"><h3>{{.Title}}</h3></div>
  <p>{{.Greeting}},</p>
  <p>{{.Intro}}</p>
  <div class="summary">{{.Summary}}</div>
  <div class="footer">
    <p>{{.Date}}</p>
    <p><em>Auto-generated summary</em></p>
  </div>
</body>
</html>
`))

// RenderSummary builds the subject and bodies for one participant. The tone
// follows IsBusiness.
func RenderSummary(name, summary string, callDate time.Time) (Rendered, error) {
	date := callDate.Format("Jan 2, 2006")
	v := view{
		Title:    "Call Recap",
		Greeting: "Hi " + name,
		Intro:    "Here's what you and your contact talked about:",
		Accent:   "#22c55e",
		Summary:  summary,
		Date:     date,
	}
	subject := "Your call recap - " + date
	if IsBusiness(summary) {
		v.Title = "Call Summary"
		v.Greeting = "Dear " + name
		v.Intro = "Here's a summary of your recent call:"
		v.Accent = "#2563eb"
		subject = "Call Summary - " + date
	}

	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, v); err != nil {
		return Rendered{}, err
	}
	text := v.Greeting + ",\n\n" + v.Intro + "\n\n" + summary + "\n\n" + date + "\nAuto-generated summary\n"
	return Rendered{Subject: subject, HTML: buf.String(), Text: text}, nil
}
