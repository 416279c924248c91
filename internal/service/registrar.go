package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jask/orphanreg/internal/api"
	"github.com/jask/orphanreg/internal/database"
	"github.com/jask/orphanreg/internal/database/repository"
	"github.com/jask/orphanreg/internal/form"
)

// ErrSubmissionInFlight is returned when Submit is called before the
// previous submission finished. No request is issued.
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

// SimilarNameDistance is the edit distance under which a previously
// registered name is reported as a possible duplicate.
const SimilarNameDistance = 2

// Creator creates orphanages on the remote API.
type Creator interface {
	CreateOrphanage(ctx context.Context, reg api.Registration) (api.Created, error)
}

// Registrar validates and submits registrations, one at a time.
type Registrar struct {
	API     Creator
	Journal *repository.RegistrationRepo // optional

	mu       sync.Mutex
	inFlight bool
}

// Outcome is a successful submission.
type Outcome struct {
	Status int
	Body   []byte
}

// Submit sends snap to the API. It returns a *form.ValidationError,
// *api.NetworkError, *api.ServerRejection or ErrSubmissionInFlight on failure.
func (r *Registrar) Submit(ctx context.Context, snap form.Snapshot) (Outcome, error) {
	if err := form.Validate(snap); err != nil {
		return Outcome{}, err
	}
	if !r.begin() {
		return Outcome{}, ErrSubmissionInFlight
	}
	defer r.end()

	reg := registrationFrom(snap)
	created, err := r.API.CreateOrphanage(ctx, reg)
	r.journal(ctx, snap, created, err)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: created.Status, Body: created.Body}, nil
}

// InFlight reports whether a submission is running.
func (r *Registrar) InFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Lookalikes lists earlier successful registrations with a similar name.
func (r *Registrar) Lookalikes(ctx context.Context, name string) ([]repository.Registration, error) {
	if r.Journal == nil {
		return nil, nil
	}
	return r.Journal.Similar(ctx, name, SimilarNameDistance)
}

func (r *Registrar) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight {
		return false
	}
	r.inFlight = true
	return true
}

func (r *Registrar) end() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

func (r *Registrar) journal(ctx context.Context, snap form.Snapshot, created api.Created, err error) {
	if r.Journal == nil {
		return
	}
	row := repository.Registration{
		ID:         uuid.NewString(),
		Name:       snap.Name,
		Latitude:   snap.Position.Lat,
		Longitude:  snap.Position.Lng,
		ImageCount: len(snap.Images),
		Outcome:    repository.OutcomeOK,
		CreatedAt:  database.Now(),
	}
	var (
		rej  *api.ServerRejection
		nerr *api.NetworkError
	)
	switch {
	case err == nil:
		status := created.Status
		row.HTTPStatus = &status
	case errors.As(err, &rej):
		status := rej.Status
		row.Outcome = repository.OutcomeRejected
		row.HTTPStatus = &status
		row.Message = rej.Message
	case errors.As(err, &nerr):
		row.Outcome = repository.OutcomeNetwork
		row.Message = nerr.Error()
	default:
		// local failure before anything was sent
		return
	}
	// recorded even when the request context was cancelled
	if jerr := r.Journal.Insert(context.WithoutCancel(ctx), row); jerr != nil {
		logrus.WithError(jerr).Warn("journal registration")
	}
}

func registrationFrom(snap form.Snapshot) api.Registration {
	uploads := make([]api.Upload, 0, len(snap.Images))
	for _, img := range snap.Images {
		uploads = append(uploads, api.Upload{Path: img.Path, Name: img.Name, ContentType: img.ContentType})
	}
	return api.Registration{
		Name:           snap.Name,
		Position:       snap.Position,
		About:          snap.About,
		Instructions:   snap.Instructions,
		OpeningHours:   snap.OpeningHours,
		OpenOnWeekends: snap.OpenOnWeekends,
		Images:         uploads,
	}
}
