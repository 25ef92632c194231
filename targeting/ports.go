package targeting

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// AngularOffset is one marker's position relative to the sensor boresight.
//
// Tx and Ty are degrees (positive Tx means the marker is right of center),
// Area is the percentage of the image the marker covers (0-100).
type AngularOffset struct {
	Tx   float64
	Ty   float64
	Area float64
}

// FiducialObservation is a single detected marker.
type FiducialObservation struct {
	ID     int
	Offset AngularOffset
}

// Pose is a robot pose estimate in field coordinates (meters, degrees).
type Pose struct {
	Position r3.Vec
	Roll     float64
	Pitch    float64
	Yaw      float64
}

// AngleSensor is the vision sensor as seen by the coordinator.
// Update refreshes the snapshot that HasTarget and Observations report.
type AngleSensor interface {
	Update()
	HasTarget() bool
	Observations() []FiducialObservation
}

// PoseSource is implemented by sensors that also estimate the robot pose.
type PoseSource interface {
	RobotPose() (Pose, bool)
}

// RotationActuator drives the turret. Power is normalized to [-1, 1];
// positive power rotates the platform left (counter-clockwise).
type RotationActuator interface {
	SetPower(p float64)
	CurrentPower() float64
}

// LauncherVelocity is a flywheel that holds a commanded speed.
type LauncherVelocity interface {
	SetTargetRPM(rpm float64)
	CurrentRPM() float64
	Stop()
}

// ErrMissingCollaborator is returned when a required component is nil.
var ErrMissingCollaborator = errors.New("missing collaborator")

// DeviceError reports a hardware device that could not be resolved at setup.
type DeviceError struct {
	Kind string // "servo", "motor", "sensor", ...
	Name string
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not find %s: %s: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("could not find %s: %s", e.Kind, e.Name)
}

func (e *DeviceError) Unwrap() error { return e.Err }

type invertedActuator struct {
	RotationActuator
}

// Inverted wraps an actuator whose gearing reverses the platform rotation.
// The wrapper negates commands on the way out and reports power in platform
// convention.
func Inverted(a RotationActuator) RotationActuator {
	if inv, ok := a.(invertedActuator); ok {
		return inv.RotationActuator
	}
	return invertedActuator{a}
}

func (a invertedActuator) SetPower(p float64) {
	a.RotationActuator.SetPower(-ClampPower(p))
}

func (a invertedActuator) CurrentPower() float64 {
	return -a.RotationActuator.CurrentPower()
}
