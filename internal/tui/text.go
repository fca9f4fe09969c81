package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

// buildStyledRunes colours target against input. Mistyped spaces show as a
// dot so the error stays visible.
func buildStyledRunes(target, input []rune) []styledRune {
	out := make([]styledRune, 0, len(target))
	for i, want := range target {
		shown := want
		style := pendingStyle
		if i < len(input) {
			switch {
			case input[i] == want:
				style = correctStyle
			case want == ' ':
				shown = '·'
				style = incorrectStyle
			default:
				style = incorrectStyle
			}
		} else if i == len(input) {
			style = cursorStyle
		}
		out = append(out, styledRune{
			s:       style.Render(string(shown)),
			width:   runewidth.RuneWidth(shown),
			isSpace: want == ' ',
		})
	}
	return out
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, r := range runes {
		b.WriteString(r.s)
	}
	return b.String()
}

// wrapStyledRunes breaks lines at the last space that fits in width.
func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, width)
	lineWidth := 0
	lastSpace := -1

	for i := 0; i < len(runes); {
		r := runes[i]
		if lineWidth+r.width > width && len(line) > 0 {
			if lastSpace >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpace+1]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpace+1:]...)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
			}
			lineWidth = 0
			lastSpace = -1
			for j, l := range line {
				lineWidth += l.width
				if l.isSpace {
					lastSpace = j
				}
			}
			continue
		}
		line = append(line, r)
		lineWidth += r.width
		if r.isSpace {
			lastSpace = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}
