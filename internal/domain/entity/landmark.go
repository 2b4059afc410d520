package entity

// NamedLandmark identifies one of the skeletal points the tracker consumes.
type NamedLandmark int

const (
	LeftShoulder NamedLandmark = iota
	RightShoulder
	LeftElbow
	RightElbow
	LeftHip
	RightHip
	LeftKnee
	RightKnee

	namedLandmarkCount
)

// RequiredLandmarks lists every NamedLandmark in declaration order.
var RequiredLandmarks = [namedLandmarkCount]NamedLandmark{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
}

// MediaPipe pose model indices (33-point topology).
var poseModelIndex = [namedLandmarkCount]int{
	LeftShoulder:  11,
	RightShoulder: 12,
	LeftElbow:     13,
	RightElbow:    14,
	LeftHip:       23,
	RightHip:      24,
	LeftKnee:      25,
	RightKnee:     26,
}

var landmarkNames = [namedLandmarkCount]string{
	LeftShoulder:  "left_shoulder",
	RightShoulder: "right_shoulder",
	LeftElbow:     "left_elbow",
	RightElbow:    "right_elbow",
	LeftHip:       "left_hip",
	RightHip:      "right_hip",
	LeftKnee:      "left_knee",
	RightKnee:     "right_knee",
}

func (l NamedLandmark) Valid() bool {
	return l >= 0 && l < namedLandmarkCount
}

// ModelIndex is the position of the landmark in the detector's raw output array.
func (l NamedLandmark) ModelIndex() int {
	if !l.Valid() {
		return -1
	}
	return poseModelIndex[l]
}

func (l NamedLandmark) String() string {
	if !l.Valid() {
		return "unknown"
	}
	return landmarkNames[l]
}

// LandmarkSample is a landmark position in normalized image space.
type LandmarkSample struct {
	X          float64
	Y          float64
	Visibility float64
}

// FrameDetection holds the landmarks resolved for a single sampled frame.
type FrameDetection struct {
	FrameIndex      int
	TimestampMicros int64
	Landmarks       map[NamedLandmark]LandmarkSample
}

// Complete reports whether every required landmark was resolved.
func (d *FrameDetection) Complete() bool {
	if d == nil || len(d.Landmarks) != len(RequiredLandmarks) {
		return false
	}
	for _, l := range RequiredLandmarks {
		if _, ok := d.Landmarks[l]; !ok {
			return false
		}
	}
	return true
}
