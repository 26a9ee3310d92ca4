package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/checkers-relay/internal/domain"
)

func mapResultToPDN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	default:
		return "*"
	}
}

// buildPDN renders a game in Portable Draughts Notation. Moves are plies in
// "c3-d4" or "a1xc3xe5" form, alternating White and Black.
func buildPDN(g *domain.CheckersGame) string {
	if g == nil {
		return ""
	}
	result := mapResultToPDN(g.Result)
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Checkers\"]\n")
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePDN(g.Room))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePDN(g.WhiteName))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePDN(g.BlackName))
	if strings.TrimSpace(g.ResultMethod) != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePDN(g.ResultMethod))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(g.Moves); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(g.Moves[i]))
		if i+1 < len(g.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.Moves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePDN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
