package pipeline

import (
	"context"
	"time"
)

// Phase names a stage of a run, or one of the two terminal states.
type Phase string

const (
	// PhaseAwaitInput waits for a captured image in the watch folder.
	PhaseAwaitInput Phase = "await-input"

	// PhaseRelocate copies the image to the reconstruction input folder.
	PhaseRelocate Phase = "relocate"

	// PhaseReconstruct runs the reconstruction command.
	PhaseReconstruct Phase = "reconstruct"

	// PhaseAwaitOutput waits for a point cloud or mesh in the foreign output folder.
	PhaseAwaitOutput Phase = "await-output"

	// PhaseBridgeBack moves the output into the local asset folder.
	PhaseBridgeBack Phase = "bridge-back"

	// PhaseTranscode rewrites the point cloud into the renderer's layout.
	PhaseTranscode Phase = "transcode"

	// PhaseSignal writes the completion marker.
	PhaseSignal Phase = "signal"

	// PhaseDone indicates the run completed.
	PhaseDone Phase = "done"

	// PhaseFailed indicates a stage failed.
	PhaseFailed Phase = "failed"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if this phase represents a final state.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Namespace is the execution environment a path belongs to.
type Namespace string

const (
	NamespaceLocal   Namespace = "local"
	NamespaceForeign Namespace = "foreign"
)

// StageFile is the file handed from one stage to the next. The receiving
// stage owns it; the sender does not touch it again.
type StageFile struct {
	Namespace Namespace
	Path      string
}

// Stage is one step of a run.
type Stage struct {
	Name    Phase
	Execute func(ctx context.Context, in StageFile) (StageFile, error)
}

// Accepted file suffixes, matched case-insensitively
var (
	ImageSuffixes  = []string{".png", ".jpg", ".jpeg"}
	OutputSuffixes = []string{".ply", ".obj"}
)

// Result describes a finished run.
type Result struct {
	RunID string
	Phase Phase
	// Stage is the failing stage when Phase is PhaseFailed.
	Stage    Phase
	Input    string // captured image that started the run
	Asset    string // transcoded point cloud
	Signal   string // completion marker
	Vertices int
	Duration time.Duration
}
