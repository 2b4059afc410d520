package entity

// Phase is a step of a single pipeline run.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseDetecting   Phase = "DETECTING"
	PhaseAggregated  Phase = "AGGREGATED"
	PhaseSmoothing   Phase = "SMOOTHING"
	PhaseCompiling   Phase = "COMPILING"
	PhaseTranscoding Phase = "TRANSCODING"
	PhaseDone        Phase = "DONE"
	PhaseFailed      Phase = "FAILED"
)

func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// PipelineState is an immutable snapshot of a pipeline run. Snapshots are
// replaced as a whole, never mutated after publication.
type PipelineState struct {
	Phase            Phase
	Progress         float64
	ProcessedFrames  int
	TotalFrames      int
	TrajectoryPoints int
	OutputPath       string
	Err              error
}
