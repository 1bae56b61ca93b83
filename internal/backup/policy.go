package backup

import (
	"errors"
	"strings"

	"github.com/loykin/safemigrate/internal/constants"
	"github.com/loykin/safemigrate/internal/store/connector"
)

// AllPages copies the whole database in one step.
const AllPages = constants.AllPagesPerStep

// Progress reports how many pages of the source have been copied.
type Progress = connector.Progress

// Policy configures the snapshot taken before migrations run.
type Policy struct {
	// Path of the snapshot file. Required.
	Path string
	// DeleteIfSuccessful removes the snapshot once every migration committed.
	// A failed run always keeps it.
	DeleteIfSuccessful bool
	// PagesPerStep is the number of pages copied per backup step; <= 0 copies everything at once.
	PagesPerStep int
	// Progress is called after each step. Returning an error cancels the backup.
	Progress func(Progress) error
}

// NewPolicy returns a policy for path that deletes the snapshot on success and copies all pages at once.
func NewPolicy(path string) *Policy {
	return &Policy{
		Path:               path,
		DeleteIfSuccessful: true,
		PagesPerStep:       AllPages,
	}
}

// Validate reports a policy that cannot produce a snapshot as a KindIOFailure *Error.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return &Error{Kind: KindIOFailure, Err: errors.New("backup path is required")}
	}
	return nil
}
