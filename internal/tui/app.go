package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jask/orphanreg/internal/api"
	"github.com/jask/orphanreg/internal/config"
	"github.com/jask/orphanreg/internal/database/repository"
	"github.com/jask/orphanreg/internal/form"
	"github.com/jask/orphanreg/internal/preview"
	"github.com/jask/orphanreg/internal/service"
)

// App is the registration page plus the listing page it navigates to.
type App struct {
	ctx      context.Context
	cfg      config.Config
	services Services
	keys     keyMap

	state      appState
	form       *form.State
	stopNotify func()
	changed    map[form.Field]bool

	focus   focusTarget
	inputs  map[focusTarget]*textinput.Model
	mapPane mapPane

	// set by View: first layout line on screen, visible body rows, and
	// clickable regions in screen rows
	viewTop  int
	bodyRows int
	hits     []hitRegion

	modal      modalState
	notice     string
	status     string
	fieldErr   *form.ValidationError
	submitting bool
	lookalikes []string
	thumbs     thumbnailSet

	listing     []api.Orphanage
	recent      []repository.Registration
	listingErr  string
	history     []string
	width       int
	height      int
	thumbWidth  int
	thumbHeight int
}

// Lister fetches registered orphanages for the listing page.
type Lister interface {
	ListOrphanages(ctx context.Context) ([]api.Orphanage, error)
}

type Services struct {
	Registrar *service.Registrar
	Listing   Lister
	Previews  form.Previewer
}

type appState string

const (
	viewForm    appState = "form"
	viewListing appState = "listing"
)

type modalState string

const (
	modalNone    modalState = ""
	modalSuccess modalState = "success"
	modalError   modalState = "error"
)

type focusTarget int

const (
	focusMap focusTarget = iota
	focusName
	focusAbout
	focusImages
	focusInstructions
	focusOpeningHours
	focusWeekend
	focusConfirm
	focusCount
)

type clickAction int

const (
	clickFocus clickAction = iota
	clickYes
	clickNo
	clickConfirm
)

// hitRegion is a clickable span [x0, x1) on one line.
type hitRegion struct {
	line   int
	x0, x1 int
	action clickAction
	target focusTarget
}

// SuccessNotice is shown after the API accepts a registration.
const SuccessNotice = "Registration completed successfully"

func New(ctx context.Context, cfg config.Config, services Services) *App {
	a := &App{
		ctx:         ctx,
		cfg:         cfg,
		services:    services,
		keys:        defaultKeys(),
		state:       viewForm,
		thumbWidth:  12,
		thumbHeight: 5,
	}
	a.resetForm()
	return a
}

// resetForm discards the current form, releasing its previews, and starts a blank one.
func (a *App) resetForm() {
	if a.form != nil {
		a.stopNotify()
		a.form.Close()
	}
	a.form = form.New(a.services.Previews)
	a.changed = map[form.Field]bool{}
	a.stopNotify = a.form.Subscribe(func(f form.Field) {
		a.changed[f] = true
		logrus.WithField("field", string(f)).Debug("form changed")
	})
	a.inputs = map[focusTarget]*textinput.Model{
		focusName:         newInput(""),
		focusAbout:        newInput(""),
		focusImages:       newInput("paths or globs, e.g. photos/*.jpg"),
		focusInstructions: newInput(""),
		focusOpeningHours: newInput(""),
	}
	a.mapPane = newMapPane(a.cfg.Map, defaultMapCols, defaultMapRows)
	a.focus = focusMap
	a.viewTop, a.bodyRows, a.hits = 0, 0, nil
	a.modal = modalNone
	a.fieldErr = nil
	a.submitting = false
	a.lookalikes = nil
	a.thumbs = thumbnailSet{}
	a.status = ""
}

func newInput(placeholder string) *textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = placeholder
	in.Width = 40
	return &in
}

func (a *App) Init() tea.Cmd {
	return nil
}

// Close releases everything the current form holds.
func (a *App) Close() {
	if a.form != nil {
		a.form.Close()
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		return a, nil
	case tea.KeyMsg:
		if key.Matches(m, a.keys.Quit) {
			a.Close()
			return a, tea.Quit
		}
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		if a.state == viewListing {
			return a.handleListingKey(m)
		}
		cmd = a.handleFormKey(m)
	case tea.MouseMsg:
		cmd = a.handleMouse(m)
	case submitDoneMsg:
		cmd = a.handleSubmitDone(m)
	case lookalikeMsg:
		if m.Name == a.form.Name() {
			a.lookalikes = m.Matches
		}
	case thumbnailsMsg:
		if m.Set.matches(a.form.Previews()) {
			a.thumbs = m.Set
		}
	case listingMsg:
		a.listing = m.Orphanages
		a.recent = m.Recent
		a.listingErr = ""
	case listingErrMsg:
		a.listingErr = m.Error()
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
	default:
		// cursor blinks and the like
		cmd = a.updateInput(msg)
	}
	return a, tea.Batch(cmd, a.afterChange())
}

// afterChange reacts to form notifications collected during Update.
func (a *App) afterChange() tea.Cmd {
	if len(a.changed) == 0 {
		return nil
	}
	var cmds []tea.Cmd
	if a.changed[form.FieldImages] {
		cmds = append(cmds, a.thumbnailsCmd())
	}
	if a.fieldErr != nil && a.changed[a.fieldErr.Field] {
		a.fieldErr = nil
	}
	a.changed = map[form.Field]bool{}
	return tea.Batch(cmds...)
}

func (a *App) handleFormKey(m tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(m, a.keys.Submit):
		return a.submit()
	case key.Matches(m, a.keys.Next):
		return a.setFocus((a.focus + 1) % focusCount)
	case key.Matches(m, a.keys.Prev):
		return a.setFocus((a.focus + focusCount - 1) % focusCount)
	}

	switch a.focus {
	case focusMap:
		return a.handleMapKey(m)
	case focusWeekend:
		switch {
		case key.Matches(m, a.keys.Yes):
			a.form.SetOpenOnWeekends(true)
		case key.Matches(m, a.keys.No):
			a.form.SetOpenOnWeekends(false)
		case key.Matches(m, a.keys.Accept):
			return a.setFocus(focusConfirm)
		}
		return nil
	case focusConfirm:
		if key.Matches(m, a.keys.Accept) || m.String() == " " {
			return a.submit()
		}
		return nil
	case focusImages:
		if key.Matches(m, a.keys.Accept) {
			return a.selectImages()
		}
	default:
		if key.Matches(m, a.keys.Accept) {
			return a.setFocus(a.focus + 1)
		}
	}
	return a.updateInput(m)
}

// updateInput feeds m to the focused text input and copies its value into
// the form slot bound to it.
func (a *App) updateInput(m tea.Msg) tea.Cmd {
	in, ok := a.inputs[a.focus]
	if !ok {
		return nil
	}
	before := in.Value()
	next, cmd := in.Update(m)
	*in = next
	if in.Value() == before {
		return cmd
	}
	switch a.focus {
	case focusName:
		a.form.SetName(in.Value())
	case focusAbout:
		a.form.SetAbout(in.Value())
	case focusInstructions:
		a.form.SetInstructions(in.Value())
	case focusOpeningHours:
		a.form.SetOpeningHours(in.Value())
	}
	return cmd
}

func (a *App) setFocus(target focusTarget) tea.Cmd {
	var cmds []tea.Cmd
	if a.focus == focusName && target != focusName {
		cmds = append(cmds, a.lookalikeCmd(a.form.Name()))
	}
	if in, ok := a.inputs[a.focus]; ok {
		in.Blur()
	}
	a.focus = target
	if in, ok := a.inputs[target]; ok {
		cmds = append(cmds, in.Focus())
	}
	return tea.Batch(cmds...)
}

func (a *App) handleMapKey(m tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(m, a.keys.Up):
		a.mapPane.move(0, -1)
	case key.Matches(m, a.keys.Down):
		a.mapPane.move(0, 1)
	case key.Matches(m, a.keys.Left):
		a.mapPane.move(-1, 0)
	case key.Matches(m, a.keys.Right):
		a.mapPane.move(1, 0)
	case key.Matches(m, a.keys.ZoomIn):
		a.mapPane.zoom(1)
	case key.Matches(m, a.keys.ZoomOut):
		a.mapPane.zoom(-1)
	case key.Matches(m, a.keys.Recenter):
		a.mapPane.recenter()
	case key.Matches(m, a.keys.SaveView):
		return a.saveMapView()
	case key.Matches(m, a.keys.Accept), m.String() == " ":
		a.form.SetPosition(a.mapPane.cursorLatLng())
	}
	return nil
}

// handleMouse maps a left click through the last rendered layout: map cells
// set the position, buttons act, and field rows take focus.
func (a *App) handleMouse(m tea.MouseMsg) tea.Cmd {
	if a.state != viewForm || a.modal != modalNone {
		return nil
	}
	if m.Action != tea.MouseActionPress || m.Button != tea.MouseButtonLeft {
		return nil
	}
	if a.bodyRows > 0 && m.Y >= a.bodyRows {
		return nil
	}
	if col, row, ok := a.mapPane.cellAt(m.X, m.Y+a.viewTop); ok {
		cmd := a.setFocus(focusMap)
		a.mapPane.cursorCol, a.mapPane.cursorRow = col, row
		a.form.SetPosition(a.mapPane.vp.At(col, row))
		return cmd
	}
	for _, h := range a.hits {
		if m.Y != h.line || m.X < h.x0 || m.X >= h.x1 {
			continue
		}
		switch h.action {
		case clickYes:
			a.form.SetOpenOnWeekends(true)
			return a.setFocus(focusWeekend)
		case clickNo:
			a.form.SetOpenOnWeekends(false)
			return a.setFocus(focusWeekend)
		case clickConfirm:
			cmd := a.setFocus(focusConfirm)
			return tea.Batch(cmd, a.submit())
		default:
			return a.setFocus(h.target)
		}
	}
	return nil
}

// saveMapView makes the current map view the default, for this session and
// in the config file.
func (a *App) saveMapView() tea.Cmd {
	vp := a.mapPane.vp
	a.cfg.Map.CenterLat, a.cfg.Map.CenterLng, a.cfg.Map.Zoom = vp.Center.Lat, vp.Center.Lng, vp.Zoom
	a.mapPane.home = vp
	cfg := a.cfg
	return func() tea.Msg {
		if err := config.Save(cfg); err != nil {
			return errMsg{err}
		}
		logrus.WithFields(logrus.Fields{"center": vp.Center.String(), "zoom": vp.Zoom}).Info("map view saved")
		return statusMsg("map view saved as default")
	}
}

func (a *App) selectImages() tea.Cmd {
	in := a.inputs[focusImages]
	paths := form.ExpandPaths(in.Value())
	if len(paths) == 0 {
		return nil
	}
	imgs, err := form.LoadImages(paths)
	if err == nil {
		err = a.form.SelectImages(imgs)
	}
	if err != nil {
		var verr *form.ValidationError
		if errors.As(err, &verr) {
			a.fieldErr = verr
			return nil
		}
		a.status = "error: " + err.Error()
		return nil
	}
	in.SetValue("")
	a.status = fmt.Sprintf("%d photo(s) selected", len(imgs))
	return nil
}

// submit starts one submission unless one is already running.
func (a *App) submit() tea.Cmd {
	if a.submitting || (a.services.Registrar != nil && a.services.Registrar.InFlight()) {
		a.status = "already sending..."
		return nil
	}
	snap := a.form.Snapshot()
	if err := form.Validate(snap); err != nil {
		var verr *form.ValidationError
		if errors.As(err, &verr) {
			a.fieldErr = verr
			a.status = ""
			return a.setFocus(focusFor(verr.Field))
		}
	}
	if a.services.Registrar == nil {
		a.status = "error: registrar not configured"
		return nil
	}
	a.submitting = true
	a.fieldErr = nil
	a.status = "sending..."
	registrar := a.services.Registrar
	ctx := a.ctx
	return func() tea.Msg {
		out, err := registrar.Submit(ctx, snap)
		return submitDoneMsg{Outcome: out, Err: err}
	}
}

func (a *App) handleSubmitDone(m submitDoneMsg) tea.Cmd {
	if errors.Is(m.Err, service.ErrSubmissionInFlight) {
		// the running submission will report its own result
		a.status = "already sending..."
		return nil
	}
	a.submitting = false
	if m.Err == nil {
		a.status = ""
		a.modal = modalSuccess
		a.notice = SuccessNotice
		logrus.WithField("status", m.Outcome.Status).Info("registration accepted")
		return nil
	}

	var (
		verr *form.ValidationError
		nerr *api.NetworkError
		rej  *api.ServerRejection
	)
	switch {
	case errors.As(m.Err, &verr):
		a.fieldErr = verr
		a.status = ""
		return a.setFocus(focusFor(verr.Field))
	case errors.As(m.Err, &nerr):
		a.notice = "Could not reach the server. Your data is kept; try again.\n" + nerr.Error()
	case errors.As(m.Err, &rej):
		a.notice = "The server rejected the registration.\n" + rej.Error()
	default:
		a.notice = "Registration failed.\n" + m.Err.Error()
	}
	a.status = ""
	a.modal = modalError
	logrus.WithError(m.Err).Warn("registration failed")
	return nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(m, a.keys.Dismiss) {
		return a, nil
	}
	kind := a.modal
	a.modal = modalNone
	a.notice = ""
	if kind == modalSuccess {
		return a, a.navigate(a.cfg.API.ListingRoute)
	}
	return a, nil
}

// navigate leaves the form for the listing page. The form is discarded.
func (a *App) navigate(route string) tea.Cmd {
	a.history = append(a.history, route)
	a.form.Close()
	a.state = viewListing
	a.listing = nil
	a.listingErr = ""
	logrus.WithField("route", route).Info("navigate")
	return a.loadListingCmd()
}

func (a *App) handleListingKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Leave):
		a.Close()
		return a, tea.Quit
	case key.Matches(m, a.keys.New):
		a.resetForm()
		a.state = viewForm
		return a, nil
	case key.Matches(m, a.keys.Refresh):
		return a, a.loadListingCmd()
	}
	return a, nil
}

func focusFor(f form.Field) focusTarget {
	switch f {
	case form.FieldName:
		return focusName
	case form.FieldAbout:
		return focusAbout
	case form.FieldImages:
		return focusImages
	case form.FieldInstructions:
		return focusInstructions
	case form.FieldOpeningHours:
		return focusOpeningHours
	case form.FieldOpenOnWeekends:
		return focusWeekend
	default:
		return focusMap
	}
}

// commands
func (a *App) lookalikeCmd(name string) tea.Cmd {
	if a.services.Registrar == nil || strings.TrimSpace(name) == "" {
		return nil
	}
	registrar := a.services.Registrar
	ctx := a.ctx
	return func() tea.Msg {
		regs, err := registrar.Lookalikes(ctx, name)
		if err != nil {
			return errMsg{err}
		}
		var names []string
		for _, r := range regs {
			names = append(names, r.Name)
		}
		return lookalikeMsg{Name: name, Matches: names}
	}
}

func (a *App) loadListingCmd() tea.Cmd {
	lister := a.services.Listing
	var journal *repository.RegistrationRepo
	if a.services.Registrar != nil {
		journal = a.services.Registrar.Journal
	}
	ctx := a.ctx
	return func() tea.Msg {
		var msg listingMsg
		if journal != nil {
			recent, err := journal.List(ctx, 5)
			if err != nil {
				logrus.WithError(err).Warn("list journal")
			}
			msg.Recent = recent
		}
		if lister == nil {
			return msg
		}
		list, err := lister.ListOrphanages(ctx)
		if err != nil {
			return listingErrMsg{err}
		}
		msg.Orphanages = list
		return msg
	}
}

func (a *App) thumbnailsCmd() tea.Cmd {
	imgs := a.form.Images()
	refs := a.form.Previews()
	w, h := a.thumbWidth, a.thumbHeight
	return func() tea.Msg {
		set := thumbnailSet{ids: make([]string, len(refs)), rendered: make([]string, len(refs))}
		for i, ref := range refs {
			set.ids[i] = ref.ID
			out, err := preview.Thumbnail(imgs[i].Path, w, h)
			if err != nil {
				logrus.WithError(err).WithField("file", imgs[i].Name).Debug("thumbnail")
				continue
			}
			set.rendered[i] = out
		}
		return thumbnailsMsg{Set: set}
	}
}

// thumbnailSet caches rendered thumbnails for one image selection.
type thumbnailSet struct {
	ids      []string
	rendered []string
}

func (t thumbnailSet) matches(refs []preview.Ref) bool {
	if len(t.ids) != len(refs) {
		return false
	}
	for i, r := range refs {
		if t.ids[i] != r.ID {
			return false
		}
	}
	return true
}

// messages
type submitDoneMsg struct {
	Outcome service.Outcome
	Err     error
}

type lookalikeMsg struct {
	Name    string
	Matches []string
}

type thumbnailsMsg struct {
	Set thumbnailSet
}

type listingMsg struct {
	Orphanages []api.Orphanage
	Recent     []repository.Registration
}

type listingErrMsg struct{ error }

type statusMsg string

type errMsg struct{ error }
