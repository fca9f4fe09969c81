package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"speedtype/internal/stats"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// WriteStats prints an account summary. Recent results are listed only
// when history is set.
func WriteStats(w io.Writer, resp stats.StatsResponse, history bool) error {
	u := resp.User
	lines := []string{
		heading(w, fmt.Sprintf("%s (%s)", u.Username, u.Subscription)),
		fmt.Sprintf("Best WPM       %.0f", u.WPM),
		fmt.Sprintf("Avg accuracy   %.0f%%", u.Accuracy),
		fmt.Sprintf("Tests taken    %d", u.TestsTaken),
	}
	if history {
		lines = append(lines, "", heading(w, "Recent results"))
		if len(resp.RecentResults) == 0 {
			lines = append(lines, "no results yet")
		} else {
			rows := make([][]string, 0, len(resp.RecentResults))
			for _, r := range resp.RecentResults {
				rows = append(rows, []string{
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					fmt.Sprintf("%.0f", r.WPM),
					fmt.Sprintf("%.0f%%", r.Accuracy),
					fmt.Sprintf("%ds", r.TimeTaken),
				})
			}
			lines = append(lines, formatTable([]string{"When", "WPM", "Acc", "Time"}, rows, map[int]bool{1: true, 2: true, 3: true})...)
		}
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func WriteLeaderboard(w io.Writer, resp stats.LeaderboardResponse) error {
	if len(resp.Users) == 0 {
		_, err := io.WriteString(w, "No results on the leaderboard yet.\n")
		return err
	}
	rows := make([][]string, 0, len(resp.Users))
	for _, e := range resp.Users {
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Rank),
			e.Username,
			fmt.Sprintf("%.0f", e.WPM),
			fmt.Sprintf("%.0f%%", e.Accuracy),
			fmt.Sprintf("%d", e.TestsTaken),
			e.Subscription.String(),
		})
	}
	lines := []string{heading(w, "Leaderboard")}
	lines = append(lines, formatTable([]string{"#", "User", "WPM", "Acc", "Tests", "Tier"}, rows, map[int]bool{0: true, 2: true, 3: true, 4: true})...)
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func heading(w io.Writer, s string) string {
	if !useColor(w) {
		return s
	}
	return titleStyle.Render(s)
}

func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func formatTable(headers []string, rows [][]string, right map[int]bool) []string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, formatRow(headers, widths, right))
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, right))
	}
	return lines
}

func formatRow(row []string, widths []int, right map[int]bool) string {
	var b strings.Builder
	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		pad := strings.Repeat(" ", max(width-runewidth.StringWidth(cell), 0))
		if right[i] {
			b.WriteString(pad + cell)
		} else {
			b.WriteString(cell + pad)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
