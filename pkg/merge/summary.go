package merge

import (
	"strings"
	"text/template"
	"time"
)

// Summary is the data rendered into SWARM_SUMMARY.md.
type Summary struct {
	RunID          string
	SourcePath     string
	StartedAt      time.Time
	CompletedAt    time.Time
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	Workers        []WorkerMergeResult
	MissingFiles   []string
}

const summaryTemplateText = `# Swarm Run Summary

Run: {{.RunID}}
Source: {{.SourcePath}}
Started: {{.StartedAt.Format "2006-01-02 15:04:05"}}
Completed: {{.CompletedAt.Format "2006-01-02 15:04:05"}}
Tasks: {{.CompletedTasks}}/{{.TotalTasks}} completed, {{.FailedTasks}} failed

## Worker Commits
{{range .Workers}}
### worker-{{.WorkerNum}} ({{.Branch}})
{{- if .Conflicted}}
Merge conflict, reconciled by file copy.
{{- if .CopiedFiles}}
Copied:
{{- range .CopiedFiles}}
- {{.}}
{{- end}}
{{- end}}
{{- if .SkippedFiles}}
Skipped (denied or failed):
{{- range .SkippedFiles}}
- {{.}}
{{- end}}
{{- end}}
{{- else}}
Clean merge.
{{- end}}
{{- if .ChangedFiles}}
Changed files:
{{- range .ChangedFiles}}
- {{.}}
{{- end}}
{{- end}}
{{end}}
{{- if .MissingFiles}}
## Verification Warnings
The following files were recorded against completed tasks but are
missing from the merged project:
{{- range .MissingFiles}}
- {{.}}
{{- end}}
{{- end}}
`

var summaryTemplate = template.Must(template.New("swarm_summary").Parse(summaryTemplateText))

// Render produces the SWARM_SUMMARY.md contents.
func Render(s Summary) (string, error) {
	var b strings.Builder
	if err := summaryTemplate.Execute(&b, s); err != nil {
		return "", err
	}
	return b.String(), nil
}
