package tui

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jask/orphanreg/internal/api"
	"github.com/jask/orphanreg/internal/config"
	"github.com/jask/orphanreg/internal/database"
	"github.com/jask/orphanreg/internal/database/repository"
	"github.com/jask/orphanreg/internal/form"
	"github.com/jask/orphanreg/internal/geo"
	"github.com/jask/orphanreg/internal/preview"
	"github.com/jask/orphanreg/internal/service"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		API: config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second, ListingRoute: "/app"},
		Map: config.MapConfig{
			CenterLat: -23.6485368,
			CenterLng: -46.6470185,
			Zoom:      15,
			TileURL:   "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png",
		},
	}
}

// fakeAPI records every request and answers POST /orphanages with status.
type fakeAPI struct {
	posts  int32
	gets   int32
	status int
	body   string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/orphanages":
		atomic.AddInt32(&f.posts, 1)
		_ = r.ParseMultipartForm(1 << 20)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	case r.Method == http.MethodGet && r.URL.Path == "/orphanages":
		atomic.AddInt32(&f.gets, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]api.Orphanage{{ID: 1, Name: "Shelter A", Latitude: -23.5, Longitude: -46.6}})
	default:
		http.NotFound(w, r)
	}
}

func newTestApp(t *testing.T, baseURL string) (*App, *preview.Registry) {
	t.Helper()
	client, err := api.NewClient(baseURL, 5*time.Second)
	require.NoError(t, err)
	reg := preview.NewRegistry("http://127.0.0.1:9")
	a := New(context.Background(), testConfig(baseURL), Services{
		Registrar: &service.Registrar{API: client},
		Listing:   client,
		Previews:  reg,
	})
	staticCursors(a)
	t.Cleanup(a.Close)
	return a, reg
}

// staticCursors stops the inputs from scheduling blink ticks.
func staticCursors(a *App) {
	for _, in := range a.inputs {
		in.Cursor.SetMode(cursor.CursorStatic)
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func apply(t *testing.T, a *App, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := a.Update(msg)
	require.Same(t, a, next)
	return cmd
}

// drain runs cmd and feeds the resulting messages back until nothing is left.
func drain(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 64, "command chain too deep")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			queue = append(queue, apply(t, a, msg))
		}
	}
}

func press(t *testing.T, a *App, msg tea.Msg) {
	t.Helper()
	drain(t, a, apply(t, a, msg))
}

func typeText(t *testing.T, a *App, s string) {
	t.Helper()
	for _, r := range s {
		press(t, a, keyRunes(string(r)))
	}
}

// clickAt renders first, as the program does before any input arrives.
func clickAt(t *testing.T, a *App, x, y int) {
	t.Helper()
	a.View()
	press(t, a, tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
}

func click(t *testing.T, a *App, col, row int) {
	t.Helper()
	clickAt(t, a, mapLeft+col, mapTop+row)
}

// findLine returns the screen row and column of the first line containing
// every needle, positioned at the first one.
func findLine(t *testing.T, view string, needles ...string) (x, y int) {
	t.Helper()
	for i, line := range strings.Split(view, "\n") {
		ok := true
		for _, n := range needles {
			ok = ok && strings.Contains(line, n)
		}
		if ok {
			return len([]rune(line[:strings.Index(line, needles[0])])), i
		}
	}
	t.Fatalf("no line contains %q", needles)
	return 0, 0
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return p
}

// fillForm types a name and clicks the map.
func fillForm(t *testing.T, a *App) {
	t.Helper()
	click(t, a, 10, 4)
	press(t, a, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusName, a.focus)
	typeText(t, a, "Shelter A")
}

func TestTextInputsAreControlled(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:9")

	press(t, a, tea.KeyMsg{Type: tea.KeyTab})
	typeText(t, a, "Casa Lar")
	require.Equal(t, "Casa Lar", a.form.Name())
	require.Equal(t, "Casa Lar", a.inputs[focusName].Value())

	press(t, a, tea.KeyMsg{Type: tea.KeyBackspace})
	require.Equal(t, "Casa La", a.form.Name())

	press(t, a, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusAbout, a.focus)
	typeText(t, a, "kids")
	require.Equal(t, "kids", a.form.About())
	require.Equal(t, "Casa La", a.form.Name())
	require.Contains(t, a.View(), "max 300 characters")
}

func TestMapClickSetsPositionAndMarker(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:9")
	require.False(t, a.form.Position().IsSet())
	require.NotContains(t, a.View(), "●")

	click(t, a, 7, 3)
	require.Equal(t, a.mapPane.vp.At(7, 3), a.form.Position())
	require.Equal(t, focusMap, a.focus)

	lines := strings.Split(a.View(), "\n")
	require.Contains(t, lines[mapTop+3], "●")

	// clicks outside the grid are ignored
	before := a.form.Position()
	press(t, a, tea.MouseMsg{X: 5, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	require.Equal(t, before, a.form.Position())
}

func TestMapKeyboardPlacesMarker(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:9")
	press(t, a, tea.KeyMsg{Type: tea.KeyRight})
	press(t, a, tea.KeyMsg{Type: tea.KeyDown})
	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, a.mapPane.vp.At(defaultMapCols/2+1, defaultMapRows/2+1), a.form.Position())
}

func TestWeekendToggle(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:9")
	require.True(t, a.form.OpenOnWeekends())

	drain(t, a, a.setFocus(focusWeekend))
	press(t, a, keyRunes("n"))
	require.False(t, a.form.OpenOnWeekends())
	press(t, a, keyRunes("y"))
	require.True(t, a.form.OpenOnWeekends())
	press(t, a, keyRunes("y"))
	require.True(t, a.form.OpenOnWeekends())
}

func TestSelectImagesShowsPreviews(t *testing.T) {
	a, reg := newTestApp(t, "http://127.0.0.1:9")
	dir := t.TempDir()
	p1 := writePNG(t, dir, "a.png")
	p2 := writePNG(t, dir, "b.png")

	drain(t, a, a.setFocus(focusImages))
	a.inputs[focusImages].SetValue(p1 + " " + p2)
	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})

	imgs := a.form.Images()
	refs := a.form.Previews()
	require.Len(t, imgs, 2)
	require.Len(t, refs, 2)
	require.Equal(t, "a.png", imgs[0].Name)
	require.Equal(t, "b.png", imgs[1].Name)
	require.Equal(t, 2, reg.Len())
	require.Empty(t, a.inputs[focusImages].Value())
	require.True(t, a.thumbs.matches(refs))
	require.NotEmpty(t, a.thumbs.rendered[0])
	require.Contains(t, a.View(), "a.png")

	// a new selection replaces the old one and releases its previews
	a.inputs[focusImages].SetValue(p2)
	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, a.form.Images(), 1)
	require.Equal(t, 1, reg.Len())
}

func TestSelectImagesRejectsNonImage(t *testing.T) {
	a, reg := newTestApp(t, "http://127.0.0.1:9")
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(txt, []byte("plain text"), 0o600))

	drain(t, a, a.setFocus(focusImages))
	a.inputs[focusImages].SetValue(txt)
	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Empty(t, a.form.Images())
	require.Zero(t, reg.Len())
	require.NotNil(t, a.fieldErr)
	require.Equal(t, form.FieldImages, a.fieldErr.Field)
}

func TestSubmitSuccessNavigatesOnce(t *testing.T) {
	fake := &fakeAPI{status: http.StatusCreated, body: `{"id":1}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a, reg := newTestApp(t, srv.URL)
	fillForm(t, a)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.EqualValues(t, 1, atomic.LoadInt32(&fake.posts))
	require.Equal(t, modalSuccess, a.modal)
	require.Contains(t, a.View(), SuccessNotice)
	require.Empty(t, a.history)

	// keys other than dismiss leave the modal up
	press(t, a, keyRunes("x"))
	require.Equal(t, modalSuccess, a.modal)

	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, modalNone, a.modal)
	require.Equal(t, viewListing, a.state)
	require.Equal(t, []string{"/app"}, a.history)
	require.EqualValues(t, 1, atomic.LoadInt32(&fake.gets))
	require.Len(t, a.listing, 1)
	require.Contains(t, a.View(), "Shelter A")
	require.Zero(t, reg.Len())

	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, []string{"/app"}, a.history)
	require.EqualValues(t, 1, atomic.LoadInt32(&fake.posts))
}

func TestDoubleSubmitSendsOneRequest(t *testing.T) {
	fake := &fakeAPI{status: http.StatusCreated, body: `{}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)
	fillForm(t, a)

	first := apply(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.True(t, a.submitting)
	require.Contains(t, a.View(), "Sending...")
	second := apply(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	drain(t, a, second)
	drain(t, a, first)

	require.EqualValues(t, 1, atomic.LoadInt32(&fake.posts))
	require.Equal(t, modalSuccess, a.modal)
	require.False(t, a.submitting)
}

func TestSubmitRejectionKeepsData(t *testing.T) {
	fake := &fakeAPI{status: http.StatusBadRequest, body: `{"message":"name taken"}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)
	fillForm(t, a)
	pos := a.form.Position()

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, modalError, a.modal)
	require.Contains(t, a.View(), "name taken")

	press(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, modalNone, a.modal)
	require.Equal(t, viewForm, a.state)
	require.Empty(t, a.history)
	require.Equal(t, "Shelter A", a.form.Name())
	require.Equal(t, pos, a.form.Position())
	require.False(t, a.submitting)

	// the user can retry
	fake.status = http.StatusCreated
	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, modalSuccess, a.modal)
	require.EqualValues(t, 2, atomic.LoadInt32(&fake.posts))
}

func TestSubmitNetworkErrorKeepsData(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	a, _ := newTestApp(t, url)
	fillForm(t, a)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, modalError, a.modal)
	require.Contains(t, a.notice, "Could not reach the server")
	require.Equal(t, "Shelter A", a.form.Name())
}

func TestSubmitValidationFocusesField(t *testing.T) {
	fake := &fakeAPI{status: http.StatusCreated}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Zero(t, atomic.LoadInt32(&fake.posts))
	require.Equal(t, modalNone, a.modal)
	require.NotNil(t, a.fieldErr)
	require.Equal(t, form.FieldName, a.fieldErr.Field)
	require.Equal(t, focusName, a.focus)

	typeText(t, a, "S")
	require.Nil(t, a.fieldErr)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, form.FieldPosition, a.fieldErr.Field)
	require.Equal(t, focusMap, a.focus)
	require.Zero(t, atomic.LoadInt32(&fake.posts))
}

func TestListingNewStartsBlankForm(t *testing.T) {
	fake := &fakeAPI{status: http.StatusCreated, body: `{}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)
	fillForm(t, a)
	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, viewListing, a.state)

	press(t, a, keyRunes("n"))
	require.Equal(t, viewForm, a.state)
	require.Empty(t, a.form.Name())
	require.False(t, a.form.Position().IsSet())
	require.True(t, a.form.OpenOnWeekends())
}

func TestMapClickInShortTerminal(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:9")
	press(t, a, tea.WindowSizeMsg{Width: 100, Height: 30})

	clickAt(t, a, 9, mapTop+4)
	require.Equal(t, a.mapPane.vp.At(9, 4), a.form.Position())
	lines := strings.Split(a.View(), "\n")
	require.LessOrEqual(t, len(lines), 30)
	require.Equal(t, '●', []rune(lines[mapTop+4])[9])
}

func TestMapClickWhileScrolled(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:9")
	press(t, a, tea.WindowSizeMsg{Width: 100, Height: 24})
	drain(t, a, a.setFocus(focusOpeningHours))

	lines := strings.Split(a.View(), "\n")
	require.LessOrEqual(t, len(lines), 24)
	require.Contains(t, a.View(), "Opening hours")
	top := a.viewTop
	require.Positive(t, top)
	require.Less(t, top, defaultMapRows-1)

	// a map row that is still on screen
	row := top - mapTop + 1
	if row < 0 {
		row = 0
	}
	y := mapTop + row - top
	clickAt(t, a, 9, y)
	require.Equal(t, a.mapPane.vp.At(9, row), a.form.Position())
	require.Equal(t, focusMap, a.focus)

	lines = strings.Split(a.View(), "\n")
	require.Equal(t, top, a.viewTop)
	require.Equal(t, '●', []rune(lines[y])[9])

	// the pinned help line is not part of the map
	before := a.form.Position()
	clickAt(t, a, 9, len(lines)-1)
	require.Equal(t, before, a.form.Position())
}

func TestScrollTop(t *testing.T) {
	require.Equal(t, 0, scrollTop(3, 10, 20, 5, 6))
	require.Equal(t, 8, scrollTop(0, 40, 20, 26, 27))
	require.Equal(t, 8, scrollTop(8, 40, 20, 10, 10))
	require.Equal(t, 4, scrollTop(8, 40, 20, 4, 5))
	require.Equal(t, 20, scrollTop(0, 40, 20, 39, 45))
}

func TestWeekendAndConfirmClicks(t *testing.T) {
	fake := &fakeAPI{status: http.StatusCreated, body: `{}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)

	x, y := findLine(t, a.View(), "No", "Yes")
	clickAt(t, a, x, y)
	require.False(t, a.form.OpenOnWeekends())
	require.Equal(t, focusWeekend, a.focus)

	x, y = findLine(t, a.View(), "Yes", "No")
	clickAt(t, a, x+1, y)
	require.True(t, a.form.OpenOnWeekends())

	x, y = findLine(t, a.View(), "Opening hours")
	clickAt(t, a, x, y)
	require.Equal(t, focusOpeningHours, a.focus)

	fillForm(t, a)
	x, y = findLine(t, a.View(), "Confirm")
	clickAt(t, a, x+2, y)
	require.EqualValues(t, 1, atomic.LoadInt32(&fake.posts))
	require.Equal(t, modalSuccess, a.modal)
}

func TestSaveMapViewWritesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	t.Setenv("ORPHANREG_CONFIG", path)
	a, _ := newTestApp(t, "http://127.0.0.1:9")

	press(t, a, keyRunes("+"))
	press(t, a, keyRunes("s"))
	require.Contains(t, a.status, "saved")
	want := a.mapPane.vp.Center

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Map.Zoom)
	require.InDelta(t, want.Lat, cfg.Map.CenterLat, 1e-9)
	require.InDelta(t, want.Lng, cfg.Map.CenterLng, 1e-9)

	// recentering returns to the saved view
	press(t, a, keyRunes("-"))
	press(t, a, keyRunes("c"))
	require.Equal(t, 16, a.mapPane.vp.Zoom)
}

func TestLookalikeHintAfterEarlierRegistration(t *testing.T) {
	fake := &fakeAPI{status: http.StatusCreated, body: `{}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	a.services.Registrar.Journal = repository.NewRegistrationRepo(db)

	fillForm(t, a)
	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Contains(t, a.View(), "Sent from this machine")
	press(t, a, keyRunes("n"))
	staticCursors(a)

	press(t, a, tea.KeyMsg{Type: tea.KeyTab})
	typeText(t, a, "shelter b")
	require.NotContains(t, a.View(), "Similar to already registered")
	press(t, a, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, []string{"Shelter A"}, a.lookalikes)
	require.Contains(t, a.View(), "Similar to already registered: Shelter A")

	// answers for a name no longer in the field are dropped
	press(t, a, lookalikeMsg{Name: "Someone Else", Matches: []string{"Someone Elsa"}})
	require.Equal(t, []string{"Shelter A"}, a.lookalikes)
}

func TestSubmitWaitsForRunningSubmission(t *testing.T) {
	var posts int32
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&posts, 1) == 1 {
			close(started)
		}
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)
	fillForm(t, a)

	done := make(chan error, 1)
	go func() {
		_, err := a.services.Registrar.Submit(context.Background(), form.Snapshot{Name: "Elsewhere", Position: geo.LatLng{Lat: 1, Lng: 1}})
		done <- err
	}()
	<-started

	cmd := apply(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.False(t, a.submitting)
	require.Equal(t, "already sending...", a.status)
	drain(t, a, cmd)

	close(release)
	require.NoError(t, <-done)
	require.EqualValues(t, 1, atomic.LoadInt32(&posts))
	require.Equal(t, modalNone, a.modal)
}
