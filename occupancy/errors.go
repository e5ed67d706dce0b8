package occupancy

import (
	"fmt"

	"github.com/courtside/club-engine/ledger"
)

// CourtOccupiedError is returned by the loser of a booking race, with
// enough context for the UI to say who holds the court.
type CourtOccupiedError struct {
	CourtID string
	Client  string
}

func (e *CourtOccupiedError) Error() string {
	return fmt.Sprintf("court %s already occupied by %s", e.CourtID, e.Client)
}

func (e *CourtOccupiedError) Unwrap() error { return ledger.ErrCourtAlreadyOccupied }
