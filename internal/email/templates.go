package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const digestSubjectFmt = "Daily summary for %s, %s"

var digestTemplate = template.Must(template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/digest.html"))

type digestPage struct {
	Title   string
	Heading string
	Digest
}

func digestSubject(d Digest) string {
	return fmt.Sprintf(digestSubjectFmt, d.TenantName, d.Date)
}

func renderDigest(d Digest) (string, error) {
	var buf bytes.Buffer
	page := digestPage{
		Title:   "Daily summary",
		Heading: "Good morning! Daily summary for " + d.Date,
		Digest:  d,
	}
	if err := digestTemplate.ExecuteTemplate(&buf, "email", page); err != nil {
		return "", fmt.Errorf("render digest email: %w", err)
	}
	return buf.String(), nil
}
