package mail

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"quiethours/internal/block"
)

var reminderBody = template.Must(template.New("reminder").Parse(`QuietHours Reminder

Your study block "{{.Title}}" starts in {{.Lead}}.
{{- if .Description}}

{{.Description}}
{{- end}}

Subject:  {{.Subject}}
Priority: {{.Priority}}
Start:    {{.Start}}
End:      {{.End}}
Duration: {{.Duration}} min
`))

// RenderReminder produces the notification content for a block whose start is
// lead away. The recipient is filled in by the caller.
func RenderReminder(b block.Block, lead time.Duration) (Message, error) {
	data := struct {
		Title, Description string
		Subject, Priority  string
		Start, End         string
		Duration           int
		Lead               string
	}{
		Title:       b.Title,
		Description: b.Description,
		Subject:     string(b.Subject),
		Priority:    string(b.Priority),
		Start:       b.StartTime.Local().Format("Mon, 02 Jan 2006 15:04"),
		End:         b.EndTime.Local().Format("Mon, 02 Jan 2006 15:04"),
		Duration:    int(b.Duration().Round(time.Minute) / time.Minute),
		Lead:        formatLead(lead),
	}

	var body strings.Builder
	if err := reminderBody.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("mail: render reminder: %w", err)
	}
	return Message{
		Subject: fmt.Sprintf("Study Time: %q starts in %s", b.Title, data.Lead),
		Body:    body.String(),
	}, nil
}

func formatLead(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "under a minute"
	}
	m := int(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
