// Package form holds the in-memory state of one orphanage registration.
//
// State is owned by the page and is mutated only through its Set* and
// SelectImages operations; every mutation notifies subscribers with the
// field that changed.
package form

import (
	"errors"
	"strings"

	"github.com/jask/orphanreg/internal/geo"
	"github.com/jask/orphanreg/internal/preview"
)

// Field names one slot of the form. Values match the multipart field names.
type Field string

const (
	FieldName           Field = "name"
	FieldPosition       Field = "position"
	FieldAbout          Field = "about"
	FieldInstructions   Field = "instructions"
	FieldOpeningHours   Field = "opening_hours"
	FieldOpenOnWeekends Field = "open_on_weekends"
	FieldImages         Field = "images"
)

// AboutLimitHint is displayed next to the about field. It is not enforced.
const AboutLimitHint = 300

// Previewer hands out preview references for selected files.
type Previewer interface {
	Acquire(src preview.Source) (preview.Ref, error)
	Release(ref preview.Ref)
}

// Listener is called after a field changes.
type Listener func(Field)

// State is the mutable registration form.
type State struct {
	name           string
	about          string
	instructions   string
	openingHours   string
	openOnWeekends bool
	position       geo.LatLng
	images         []Image
	previews       []preview.Ref

	previewer Previewer
	listeners map[int]Listener
	nextID    int
}

// New returns an empty form. Weekend visits default to yes.
func New(p Previewer) *State {
	return &State{
		openOnWeekends: true,
		previewer:      p,
		listeners:      map[int]Listener{},
	}
}

// Subscribe registers fn for change notifications and returns a func that removes it.
func (s *State) Subscribe(fn Listener) func() {
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

func (s *State) notify(f Field) {
	for _, fn := range s.listeners {
		fn(f)
	}
}

func (s *State) SetName(v string) {
	s.name = v
	s.notify(FieldName)
}

func (s *State) SetAbout(v string) {
	s.about = v
	s.notify(FieldAbout)
}

func (s *State) SetInstructions(v string) {
	s.instructions = v
	s.notify(FieldInstructions)
}

func (s *State) SetOpeningHours(v string) {
	s.openingHours = v
	s.notify(FieldOpeningHours)
}

func (s *State) SetOpenOnWeekends(v bool) {
	s.openOnWeekends = v
	s.notify(FieldOpenOnWeekends)
}

// SetPosition records the location picked on the map.
func (s *State) SetPosition(p geo.LatLng) {
	s.position = p
	s.notify(FieldPosition)
}

// SelectImages replaces the current selection with files. An empty
// selection is a no-op. Previews for the new files are acquired before
// the old ones are released, so a failed acquire leaves the form unchanged.
func (s *State) SelectImages(files []Image) error {
	if len(files) == 0 {
		return nil
	}
	refs := make([]preview.Ref, 0, len(files))
	for _, f := range files {
		ref, err := s.acquire(f)
		if err != nil {
			s.releaseAll(refs)
			return err
		}
		refs = append(refs, ref)
	}
	s.releaseAll(s.previews)
	s.images = append([]Image(nil), files...)
	s.previews = refs
	s.notify(FieldImages)
	return nil
}

func (s *State) acquire(img Image) (preview.Ref, error) {
	if s.previewer == nil {
		return preview.Ref{}, errors.New("no previewer configured")
	}
	return s.previewer.Acquire(img.source())
}

func (s *State) releaseAll(refs []preview.Ref) {
	if s.previewer == nil {
		return
	}
	for _, r := range refs {
		s.previewer.Release(r)
	}
}

// Close releases every preview held by the form. It is safe to call twice.
func (s *State) Close() {
	if len(s.previews) == 0 && len(s.images) == 0 {
		return
	}
	s.releaseAll(s.previews)
	s.previews = nil
	s.images = nil
	s.notify(FieldImages)
}

func (s *State) Name() string            { return s.name }
func (s *State) About() string           { return s.about }
func (s *State) Instructions() string    { return s.instructions }
func (s *State) OpeningHours() string    { return s.openingHours }
func (s *State) OpenOnWeekends() bool    { return s.openOnWeekends }
func (s *State) Position() geo.LatLng    { return s.position }
func (s *State) Images() []Image         { return append([]Image(nil), s.images...) }
func (s *State) Previews() []preview.Ref { return append([]preview.Ref(nil), s.previews...) }

// Snapshot is an immutable copy of the form taken at submit time.
type Snapshot struct {
	Name           string
	About          string
	Instructions   string
	OpeningHours   string
	OpenOnWeekends bool
	Position       geo.LatLng
	Images         []Image
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Name:           s.name,
		About:          s.about,
		Instructions:   s.instructions,
		OpeningHours:   s.openingHours,
		OpenOnWeekends: s.openOnWeekends,
		Position:       s.position,
		Images:         s.Images(),
	}
}

// Validate checks the fields the API cannot work without.
func Validate(snap Snapshot) error {
	if strings.TrimSpace(snap.Name) == "" {
		return &ValidationError{Field: FieldName, Reason: "required"}
	}
	if !snap.Position.IsSet() {
		return &ValidationError{Field: FieldPosition, Reason: "pick a location on the map"}
	}
	return nil
}
