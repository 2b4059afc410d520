package entity

// Point is a position in normalized image space.
type Point struct {
	X float64
	Y float64
}

// TrajectoryPoint is the subject reference position observed at a sampled frame.
type TrajectoryPoint struct {
	FrameIndex int
	X          float64
	Y          float64
}
