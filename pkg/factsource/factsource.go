// Package factsource loads and enriches component fact snapshots.
//
// Snapshots arrive two ways: loaders read complete documents from disk
// (Load, LoadFile, LoadDir), and providers query remote APIs for the
// facts a snapshot is missing. A Fetcher fans providers out over the
// component list, paces requests through the shared rate limiter, and
// consults a health Registry so a source that has failed past its
// threshold stops receiving traffic instead of timing out once per
// component.
package factsource

import (
	"context"

	"github.com/depgate/depgate/pkg/facts"
)

// Known source names as they appear in health stats and reports.
const (
	SourceOSV  = "osv"
	SourceFile = "file"
)

// Provider enriches one component snapshot with facts from one source.
type Provider interface {
	// Name identifies the source in health stats and skip errors.
	Name() string

	// Enrich fills in whatever facts the source knows for the
	// snapshot's component. Implementations mutate snap in place and
	// must not touch any other snapshot.
	Enrich(ctx context.Context, snap *facts.Snapshot) error
}

// BatchProvider is implemented by providers that can answer for many
// components in one round trip. The Fetcher prefers the batch path when
// a provider offers it.
type BatchProvider interface {
	Provider

	// EnrichAll enriches every snapshot it can and returns an error
	// when any component could not be completed. Snapshots enriched
	// before the failure keep their facts.
	EnrichAll(ctx context.Context, snaps []*facts.Snapshot) error
}
