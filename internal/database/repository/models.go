package repository

import "time"

// Outcome classifies a submission attempt.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected"
	OutcomeNetwork  Outcome = "network"
)

// Registration represents one submission attempt row.
type Registration struct {
	ID         string
	Name       string
	Latitude   float64
	Longitude  float64
	ImageCount int
	Outcome    Outcome
	HTTPStatus *int
	Message    string
	CreatedAt  time.Time
}
