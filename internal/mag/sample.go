package mag

// Vec3 is a three-axis reading in sensor counts.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sample is one magnetometer+accelerometer reading taken on a collection
// tick. Immutable once recorded.
type Sample struct {
	Mag Vec3 `json:"mag"`
	Acc Vec3 `json:"acc"`
}

// SampleSource yields magnetic-field and acceleration vectors on
// demand. internal/sensors provides the MPU-9250 implementation and a
// simulated vehicle for dry runs.
type SampleSource interface {
	ReadMagField() (Vec3, error)
	ReadAcceleration() (Vec3, error)
}
