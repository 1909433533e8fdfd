// Package report renders the appraisal result set as a self-contained
// HTML document. Render is a pure function of its inputs so the output
// is deterministic and independently testable.
package report

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/ArtAbreu/SteamApp/pkg/history"
)

// Row pairs a snapshot with the timestamp string shown in its table row.
// Batch reports stamp rows with the batch time; the 24h download report
// uses each record's stored timestamp.
type Row struct {
	Snapshot history.Snapshot
	Date     string
}

// Ban status labels. The zero-value/no-flags case renders as a private
// or empty profile rather than "Clean".
const (
	labelVACBan  = "VAC BAN"
	labelClean   = "Clean"
	labelPrivate = "Privado/Sem Itens"
)

// BanLabel derives the status label for a snapshot: VAC BAN takes
// precedence over game bans, game bans over Clean, and a zero-value
// unflagged profile renders as private/empty.
func BanLabel(s history.Snapshot) string {
	switch {
	case s.VACBanned:
		return labelVACBan
	case s.GameBans > 0:
		return fmt.Sprintf("%d BAN(S)", s.GameBans)
	case s.TotalValueBRL == 0:
		return labelPrivate
	default:
		return labelClean
	}
}

// banCellClass returns the css class for the status cell.
func banCellClass(s history.Snapshot) string {
	switch {
	case s.VACBanned:
		return "vac-ban-cell"
	case s.GameBans > 0:
		return "game-ban-cell"
	default:
		return ""
	}
}

// FormatBRL formats a currency value with two decimals and a comma
// separator, e.g. 63.00 -> "63,00".
func FormatBRL(v float64) string {
	return strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}

// FormatPercent formats a percentage with two decimals and a comma
// separator, e.g. 25.0 -> "25,00".
func FormatPercent(p float64) string {
	return strings.Replace(fmt.Sprintf("%.2f", p), ".", ",", 1)
}

// InfoMessage wraps an informational message in the report's markup, used
// when a batch has nothing new to process.
func InfoMessage(msg string) string {
	return fmt.Sprintf(`<div class="info-message">%s</div>`, html.EscapeString(msg))
}

// Render produces the full report document. Rows are sorted descending
// by total value with a stable sort, so ties keep their input order.
// newCount is the number of inventories priced by this request;
// totalCount is the overall concluded total shown in the header.
func Render(title string, rows []Row, newCount, totalCount int, generatedAt time.Time) string {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Snapshot.TotalValueBRL > sorted[j].Snapshot.TotalValueBRL
	})

	var b strings.Builder
	for _, row := range sorted {
		writeRow(&b, row)
	}

	return fmt.Sprintf(documentTemplate,
		html.EscapeString(title),
		html.EscapeString(title),
		generatedAt.Format(history.TimestampFormat),
		newCount,
		totalCount,
		b.String(),
	)
}

// writeRow appends one table row for a snapshot.
func writeRow(b *strings.Builder, row Row) {
	s := row.Snapshot
	fmt.Fprintf(b, `
      <tr>
        <td><a href="https://steamcommunity.com/profiles/%s" target="_blank">%s</a></td>
        <td class=%q>%s</td>
        <td>R$ %s</td>
        <td>%s%%</td>
        <td>%s</td>
      </tr>`,
		html.EscapeString(s.SteamID),
		html.EscapeString(s.RealName),
		banCellClass(s),
		BanLabel(s),
		FormatBRL(s.TotalValueBRL),
		FormatPercent(s.CasesPercentage),
		html.EscapeString(row.Date),
	)
	b.WriteString("\n")
}

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; background: #1a1a2e; color: #E0E0E0; margin: 20px; }
        h1 { color: #FF5722; font-size: 1.5em; border-bottom: 2px solid #333; padding-bottom: 10px; }
        p { color: #AAAAAA; }
        table { width: 100%%; border-collapse: collapse; margin-top: 20px; font-size: 0.95em; border: 1px solid #444; }
        th, td { padding: 12px; text-align: center; border: 1px solid #444; }
        th { background: #2a2a40; color: #FF5722; text-transform: uppercase; }
        tr:nth-child(even) { background: #1e1e32; }
        tr:hover { background: #30304a; }
        a { color: #5cb85c; text-decoration: none; }
        .info-message { color: #888; text-align: center; padding: 50px; }
        .vac-ban-cell { background: #4a1a1a; color: #FF0000; font-weight: bold; }
        .game-ban-cell { background: #4a3a1a; color: #FFD700; font-weight: bold; }
    </style>
</head>
<body>
    <h1>%s - %s</h1>
    <p>New inventories appraised in this run: %d.</p>
    <p>Total identifiers concluded (success/ban/error): %d.</p>
    <table>
        <tr>
          <th>STEAM PROFILE</th>
          <th>BAN STATUS</th>
          <th>TOTAL VALUE (R$)</th>
          <th>%% CASES</th>
          <th>DATE/TIME</th>
        </tr>
      %s
    </table>
</body>
</html>`
