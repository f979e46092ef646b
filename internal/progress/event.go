package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage names a crawl milestone.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StagePairCounted Stage = "PAIR_COUNTED"
	StagePageDone    Stage = "PAGE_DONE"
	StagePageFailed  Stage = "PAGE_FAILED"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
)

// Event is a single crawl progress report.
type Event struct {
	// RunID identifies the crawl run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC time the event was emitted.
	TS time.Time
	Stage Stage
	// Role and Region scope pair and page events.
	Role   string
	Region string
	// Page is the zero-based page index of page events, or the page count of
	// PAIR_COUNTED events.
	Page int
	// Listings is the number of listings a page contributed.
	Listings int
	// Failures counts detail fetches of the page that failed.
	Failures int
	Dur      time.Duration
	Note     string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePairCounted, StagePageDone, StagePageFailed:
		if e.Role == "" || e.Region == "" {
			return fmt.Errorf("%s requires role and region", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Page < 0 || e.Listings < 0 || e.Failures < 0 {
		return errors.New("counters must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
