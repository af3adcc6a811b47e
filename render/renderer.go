// Package render turns grouped scans into the shift report, as an HTML page
// for the browser and PDF printing, or as Markdown for the terminal.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"shiftscan/barcode"
	"shiftscan/model"
	"shiftscan/shift"
)

const timeLayout = "2006-01-02 15:04:05"

var shiftTitles = map[shift.Shift]string{
	shift.Morning: "Morning",
	shift.Evening: "Evening",
	shift.Night:   "Night",
}

func heading(s shift.Shift, n int) string {
	return fmt.Sprintf("%s shift (%s): %d", shiftTitles[s], s.Label(), n)
}

// RenderScanTableHTML renders one shift's records as a table fragment.
func RenderScanTableHTML(records []model.ScanRecord) string {
	var sb strings.Builder

	sb.WriteString(`
    <thead>
        <tr>
            <th class="col-no">#</th>
            <th class="col-code">Code</th>
            <th class="col-type">Type</th>
            <th class="col-path">Path</th>
            <th class="col-time">Scanned at</th>
        </tr>
    </thead>`)

	sb.WriteString(`<tbody>`)
	if len(records) == 0 {
		sb.WriteString(`<tr><td colspan="5" class="center">No scans in this shift.</td></tr>`)
	}
	for i, rec := range records {
		info := barcode.Inspect(rec.Code)
		typeText := info.Symbology
		if info.Gtin14 != "" && !info.CheckDigitOK {
			typeText += " (bad check digit)"
		}

		sb.WriteString(`<tr>`)
		sb.WriteString(fmt.Sprintf(`<td class="right col-no">%d</td>`, i+1))
		sb.WriteString(fmt.Sprintf(`<td class="col-code">%s</td>`, html.EscapeString(rec.Code)))
		sb.WriteString(fmt.Sprintf(`<td class="center col-type">%s</td>`, html.EscapeString(typeText)))
		sb.WriteString(fmt.Sprintf(`<td class="col-path">%s</td>`, html.EscapeString(rec.Path)))
		sb.WriteString(fmt.Sprintf(`<td class="center col-time">%s</td>`, rec.Timestamp.Format(timeLayout)))
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody>`)

	return sb.String()
}

// RenderReportHTML renders the full report page.
func RenderReportHTML(g model.GroupedScans, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Scan report</title>
<style>
body { font-family: sans-serif; margin: 24px; }
h1 { font-size: 20px; }
h2 { font-size: 16px; margin-top: 24px; }
table { border-collapse: collapse; width: 100%; font-size: 12px; }
th, td { border: 1px solid #999; padding: 4px 6px; }
th { background: #eee; }
.center { text-align: center; }
.right { text-align: right; }
@media print { h2 { page-break-after: avoid; } tr { page-break-inside: avoid; } }
</style>
</head>
<body>
`)
	sb.WriteString(fmt.Sprintf("<h1>Scan report</h1>\n<p>Generated %s. Total scans: %d.</p>\n",
		generatedAt.Format(timeLayout+" -07:00"), g.Len()))

	for _, s := range shift.All {
		records := *g.Bucket(s)
		sb.WriteString(fmt.Sprintf("<h2>%s</h2>\n<table>", html.EscapeString(heading(s, len(records)))))
		sb.WriteString(RenderScanTableHTML(records))
		sb.WriteString("</table>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// RenderReportMarkdown renders the report for terminal display.
func RenderReportMarkdown(g model.GroupedScans, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Scan report\n\n")
	sb.WriteString(fmt.Sprintf("Generated %s. Total scans: **%d**.\n", generatedAt.Format(timeLayout+" -07:00"), g.Len()))

	for _, s := range shift.All {
		records := *g.Bucket(s)
		sb.WriteString(fmt.Sprintf("\n## %s\n\n", heading(s, len(records))))
		if len(records) == 0 {
			sb.WriteString("_No scans in this shift._\n")
			continue
		}
		sb.WriteString("| # | Code | Path | Scanned at |\n|---:|---|---|---|\n")
		for i, rec := range records {
			path := rec.Path
			if path == "" {
				path = "-"
			}
			sb.WriteString(fmt.Sprintf("| %d | `%s` | %s | %s |\n",
				i+1, mdEscape(rec.Code), mdEscape(path), rec.Timestamp.Format(timeLayout)))
		}
	}
	return sb.String()
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", `\|`, "`", "'", "\n", " ").Replace(s)
}
