package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/orphanreg/internal/form"
	"github.com/jask/orphanreg/internal/geo"
)

func (a *App) View() string {
	if a.modal != modalNone {
		a.hits = nil
		return a.clip(titleStyle.Render("Register orphanage") + "\n\n" + a.renderModal())
	}
	if a.state == viewListing {
		a.hits = nil
		return a.clip(a.renderListing())
	}
	return a.renderForm()
}

func (a *App) lineWidth() int {
	if a.width > 0 {
		return a.width
	}
	return 100
}

// clip keeps the top of out within the terminal height.
func (a *App) clip(out string) string {
	if a.height <= 0 {
		return out
	}
	lines := strings.Split(out, "\n")
	if len(lines) <= a.height {
		return out
	}
	return strings.Join(lines[:a.height], "\n")
}

// formLayout collects the form's lines with the focused range and the
// clickable regions, in layout coordinates.
type formLayout struct {
	lines      []string
	focusStart int
	focusEnd   int
	hits       []hitRegion
}

// add appends s and returns the index of its first line.
func (l *formLayout) add(s string) int {
	at := len(l.lines)
	l.lines = append(l.lines, strings.Split(s, "\n")...)
	return at
}

func (l *formLayout) focusOn(start, end int) {
	l.focusStart, l.focusEnd = start, end
}

// renderForm lays out the form and scrolls it so the focused element stays
// visible. The help line is pinned below the scrolled body.
func (a *App) renderForm() string {
	l := a.layoutForm()

	footer := []string{helpLine(a.keys.Next, a.keys.Submit, a.keys.ZoomIn, a.keys.SaveView, a.keys.Quit)}
	if a.status != "" {
		footer = append(footer, statusStyle.Render(a.status))
	}
	body := len(l.lines)
	if a.height > 0 {
		body = max(1, a.height-len(footer))
	}
	top := scrollTop(a.viewTop, len(l.lines), body, l.focusStart, l.focusEnd)
	end := min(len(l.lines), top+body)

	a.viewTop = top
	a.bodyRows = end - top
	a.hits = a.hits[:0]
	for _, h := range l.hits {
		if h.line >= top && h.line < end {
			h.line -= top
			a.hits = append(a.hits, h)
		}
	}
	lines := append(append([]string{}, l.lines[top:end]...), footer...)
	return strings.Join(lines, "\n")
}

// scrollTop moves the window starting at prev just enough to show
// [focusStart, focusEnd].
func scrollTop(prev, total, rows, focusStart, focusEnd int) int {
	if total <= rows {
		return 0
	}
	top := prev
	if focusEnd >= top+rows {
		top = focusEnd - rows + 1
	}
	if focusStart < top {
		top = focusStart
	}
	return max(0, min(top, total-rows))
}

func (a *App) layoutForm() *formLayout {
	l := &formLayout{}
	// the map must start at line mapTop
	l.add(titleStyle.Render("Register orphanage"))
	l.add(legendStyle.Render("Data"))
	l.add(a.mapPane.render(a.form.Position(), a.focus == focusMap))
	if a.focus == focusMap {
		l.focusOn(mapTop+a.mapPane.cursorRow, mapTop+a.mapPane.cursorRow)
	}

	pos := "click the map or move with arrows and press enter"
	if p := a.form.Position(); p.IsSet() {
		pos = p.String()
	}
	l.add(hintStyle.Render(ansi.Truncate(
		fmt.Sprintf("position: %s  zoom %d  tile %s", pos, a.mapPane.vp.Zoom, a.mapPane.centerTileURL()),
		a.lineWidth(), "…")))
	a.addFieldError(l, form.FieldPosition)

	a.addField(l, focusName, "Name", "")
	if len(a.lookalikes) > 0 {
		l.add(warningStyle.Render("Similar to already registered: " + strings.Join(a.lookalikes, ", ")))
	}
	a.addFieldError(l, form.FieldName)
	a.addField(l, focusAbout, "About", fmt.Sprintf("max %d characters", form.AboutLimitHint))
	photos := a.addField(l, focusImages, "Photos", "enter to select")
	for _, line := range a.renderImages() {
		l.add(line)
	}
	if a.focus == focusImages {
		l.focusOn(photos, len(l.lines)-1)
	}
	a.addFieldError(l, form.FieldImages)

	l.add("")
	l.add(legendStyle.Render("Visiting"))
	a.addField(l, focusInstructions, "Instructions", "")
	a.addField(l, focusOpeningHours, "Opening hours", "")
	a.addWeekend(l)
	l.add("")
	a.addConfirm(l)
	return l
}

func (a *App) addFieldError(l *formLayout, f form.Field) {
	if a.fieldErr == nil || a.fieldErr.Field != f {
		return
	}
	l.add(errorStyle.Render("  ! " + a.fieldErr.Reason))
}

// addField adds a labelled input and returns the label's line.
func (a *App) addField(l *formLayout, target focusTarget, label, hint string) int {
	at := l.add(a.renderField(target, label, hint))
	if a.focus == target {
		l.focusOn(at, at+1)
	}
	l.hits = append(l.hits,
		hitRegion{line: at, x0: 0, x1: a.lineWidth(), action: clickFocus, target: target},
		hitRegion{line: at + 1, x0: 0, x1: a.lineWidth(), action: clickFocus, target: target},
	)
	return at
}

func (a *App) renderField(target focusTarget, label, hint string) string {
	style := labelStyle
	marker := "  "
	if a.focus == target {
		style = focusStyle
		marker = "▶ "
	}
	head := style.Render(marker + label)
	if hint != "" {
		head += " " + hintStyle.Render(hint)
	}
	return head + "\n    " + a.inputs[target].View()
}

func (a *App) renderImages() []string {
	imgs := a.form.Images()
	refs := a.form.Previews()
	if len(imgs) == 0 {
		return []string{hintStyle.Render("    no photos selected")}
	}
	var lines []string
	for i, img := range imgs {
		line := fmt.Sprintf("    %d. %s (%s)  %s", i+1, img.Name, img.ContentType, refs[i].URL)
		lines = append(lines, ansi.Truncate(line, a.lineWidth(), "…"))
	}
	var thumbs []string
	for _, t := range a.thumbs.rendered {
		if t != "" {
			thumbs = append(thumbs, t, " ")
		}
	}
	if len(thumbs) > 0 {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, append([]string{"    "}, thumbs...)...))
	}
	return lines
}

// buttonIndent is the left margin of the weekend buttons.
const buttonIndent = "    "

func (a *App) addWeekend(l *formLayout) {
	style := labelStyle
	marker := "  "
	if a.focus == focusWeekend {
		style = focusStyle
		marker = "▶ "
	}
	yesStyle, noStyle := buttonStyle, activeButtonStyle
	if a.form.OpenOnWeekends() {
		yesStyle, noStyle = activeButtonStyle, buttonStyle
	}
	yes, no := yesStyle.Render("Yes"), noStyle.Render("No")

	at := l.add(style.Render(marker + "Open on weekends"))
	row := l.add(buttonIndent + lipgloss.JoinHorizontal(lipgloss.Top, yes, " ", no))
	if a.focus == focusWeekend {
		l.focusOn(at, row)
	}
	yesAt := lipgloss.Width(buttonIndent)
	noAt := yesAt + lipgloss.Width(yes) + 1
	l.hits = append(l.hits,
		hitRegion{line: at, x0: 0, x1: a.lineWidth(), action: clickFocus, target: focusWeekend},
		hitRegion{line: row, x0: yesAt, x1: yesAt + lipgloss.Width(yes), action: clickYes},
		hitRegion{line: row, x0: noAt, x1: noAt + lipgloss.Width(no), action: clickNo},
	)
}

func (a *App) addConfirm(l *formLayout) {
	marker := "  "
	if a.focus == focusConfirm {
		marker = focusStyle.Render("▶ ")
	}
	button := confirmStyle.Render("Confirm")
	if a.submitting {
		button = disabledStyle.Render("Sending...")
	}
	at := l.add(marker + button)
	if a.focus == focusConfirm {
		l.focusOn(at, at)
	}
	x0 := lipgloss.Width(marker)
	l.hits = append(l.hits, hitRegion{line: at, x0: x0, x1: x0 + lipgloss.Width(button), action: clickConfirm})
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalSuccess:
		return modalStyle.Render(a.notice + "\n\n" + helpLine(a.keys.Accept))
	case modalError:
		return modalErrorStyle.Render(a.notice + "\n\n" + helpLine(a.keys.Dismiss))
	default:
		return ""
	}
}

func (a *App) renderListing() string {
	route := ""
	if n := len(a.history); n > 0 {
		route = a.history[n-1]
	}
	out := titleStyle.Render("Orphanages") + " " + hintStyle.Render(route) + "\n"
	switch {
	case a.listingErr != "":
		out += errorStyle.Render("could not load orphanages: "+a.listingErr) + "\n"
	case len(a.listing) == 0:
		out += hintStyle.Render("  (no orphanages yet)") + "\n"
	default:
		for _, o := range a.listing {
			weekends := "no"
			if o.OpenOnWeekends {
				weekends = "yes"
			}
			pos := geo.LatLng{Lat: o.Latitude, Lng: o.Longitude}
			line := fmt.Sprintf("  • %-32s %-28s weekends: %-3s photos: %d", o.Name, pos.String(), weekends, len(o.Images))
			out += ansi.Truncate(line, a.lineWidth(), "…") + "\n"
		}
	}
	if len(a.recent) > 0 {
		out += "\n" + legendStyle.Render("Sent from this machine") + "\n"
		for _, r := range a.recent {
			status := "-"
			if r.HTTPStatus != nil {
				status = fmt.Sprintf("%d", *r.HTTPStatus)
			}
			out += fmt.Sprintf("  %s  %-8s %-4s %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Outcome, status, r.Name)
		}
	}
	out += "\n" + helpLine(a.keys.New, a.keys.Refresh, a.keys.Leave)
	if a.status != "" {
		out += "\n" + statusStyle.Render(a.status)
	}
	return out
}
