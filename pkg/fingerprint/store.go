package fingerprint

import "context"

// ArtifactKind identifies one derived artifact cached under a fingerprint.
type ArtifactKind string

const (
	KindDepthMap    ArtifactKind = "depth"
	KindEdgeMap     ArtifactKind = "edge"
	KindGradientMap ArtifactKind = "gradient"
	KindEmbedding   ArtifactKind = "embedding"
)

// MapKinds lists the visual map artifacts in their canonical order.
var MapKinds = []ArtifactKind{KindDepthMap, KindEdgeMap, KindGradientMap}

// Store maps (fingerprint, artifact kind) to a previously computed artifact.
// Map artifacts are encoded PNG bytes; the embedding artifact is the
// JSON-encoded vector. Entries are immutable once written: identical source
// bytes always yield identical artifacts, so Put is an idempotent no-op when
// the entry already exists. A failing Store must never abort the pipeline;
// callers regenerate the artifact and log the degraded condition.
type Store interface {
	Get(ctx context.Context, hash string, kind ArtifactKind) ([]byte, bool, error)
	Put(ctx context.Context, hash string, kind ArtifactKind, artifact []byte) error

	// Location returns a resolvable path/URL for a cached artifact, if the
	// backend has one (disk-backed stores do). Used for display metadata only.
	Location(hash string, kind ArtifactKind) string
}
