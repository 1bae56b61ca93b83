package status

import (
	"context"
	"fmt"
	"time"

	"github.com/loykin/safemigrate/internal/migration"
	"github.com/loykin/safemigrate/internal/store"
)

// Status display constants
const (
	defaultHistoryLimit = 10 // Default number of history entries to show
)

// Info aggregates status information for one database against one registry.
// Completed holds every recorded migration, oldest first, including ones the
// registry no longer knows; those identifiers are also listed in Unknown.
type Info struct {
	Registered []string
	Completed  []store.Record
	Pending    []string
	Unknown    []string
}

// FromStore collects status information from an opened store.
// reg may be nil, in which case only Completed is filled.
func FromStore(ctx context.Context, st *store.Store, reg *migration.Registry) (Info, error) {
	recs, err := st.Completed(ctx)
	if err != nil {
		return Info{}, err
	}
	info := Info{Completed: recs}

	done := make(map[string]bool, len(recs))
	for _, r := range recs {
		done[r.Identifier] = true
	}
	known := map[string]bool{}
	if reg != nil {
		info.Registered = reg.IDs()
		for _, id := range info.Registered {
			known[id] = true
			if !done[id] {
				info.Pending = append(info.Pending, id)
			}
		}
	}
	if reg != nil {
		for _, r := range recs {
			if !known[r.Identifier] {
				info.Unknown = append(info.Unknown, r.Identifier)
			}
		}
	}
	return info, nil
}

// CompletedIDs returns the identifiers of Completed in order.
func (i Info) CompletedIDs() []string {
	out := make([]string, 0, len(i.Completed))
	for _, r := range i.Completed {
		out = append(out, r.Identifier)
	}
	return out
}

// UpToDate reports whether nothing is pending.
func (i Info) UpToDate() bool {
	return len(i.Pending) == 0
}

func (i Info) base() string {
	out := fmt.Sprintf("registered: %d\ncompleted: %v\npending: %v\n", len(i.Registered), i.CompletedIDs(), i.Pending)
	if len(i.Unknown) > 0 {
		out += fmt.Sprintf("unknown: %v\n", i.Unknown)
	}
	return out
}

func formatRecord(r store.Record) string {
	return fmt.Sprintf("#%d %s at=%s took=%s\n", r.Seq, r.Identifier, r.AppliedAt.UTC().Format(time.RFC3339), r.Duration)
}

// FormatHuman returns a human-friendly multiline string for CLI output.
// history=true appends every completed migration, oldest first.
func (i Info) FormatHuman(history bool) string {
	base := i.base()
	if !history {
		return base
	}
	if len(i.Completed) == 0 {
		return base + "history: \n"
	}
	out := base + "history:\n"
	for _, r := range i.Completed {
		out += formatRecord(r)
	}
	return out
}

// FormatHumanWithLimit prints status like FormatHuman, but when history=true it prints
// newest-first up to the provided limit. If all=true, the entire history is printed
// newest-first and limit is ignored. Default behavior when limit<=0 is 10.
func (i Info) FormatHumanWithLimit(history bool, limit int, all bool) string {
	base := i.base()
	if !history {
		return base
	}
	if len(i.Completed) == 0 {
		return base + "history: \n"
	}
	rev := make([]store.Record, len(i.Completed))
	for idx := range i.Completed {
		rev[len(i.Completed)-1-idx] = i.Completed[idx]
	}
	items := rev
	if !all {
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		if len(items) > limit {
			items = items[:limit]
		}
	}
	out := base + "history:\n"
	for _, r := range items {
		out += formatRecord(r)
	}
	return out
}
