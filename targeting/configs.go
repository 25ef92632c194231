package targeting

import (
	"fmt"
	"strings"
	"time"
)

// AimConfig holds turret aim controller parameters
type AimConfig struct {
	ProportionalGain   float64       `json:"proportional_gain"`    // power per degree of error
	MinimumPower       float64       `json:"minimum_power"`        // friction floor
	TargetToleranceDeg float64       `json:"target_tolerance_deg"` // aim deadband
	Period             time.Duration `json:"-"`                    // nominal cycle period
}

// DefaultAimConfig returns the tuning used on the competition robot.
func DefaultAimConfig() AimConfig {
	return AimConfig{
		ProportionalGain:   0.02,
		MinimumPower:       0.1,
		TargetToleranceDeg: 2.0,
		Period:             20 * time.Millisecond,
	}
}

// KinematicsConfig describes launcher and sensor geometry. Lengths in meters,
// angles in degrees.
type KinematicsConfig struct {
	LaunchHeight        float64 `json:"launch_height_m"`
	TargetHeight        float64 `json:"target_height_m"`
	LaunchAngleDeg      float64 `json:"launch_angle_deg"`
	SensorHeight        float64 `json:"sensor_height_m"`
	SensorMountAngleDeg float64 `json:"sensor_mount_angle_deg"` // positive = tilted up
	FlywheelDiameter    float64 `json:"flywheel_diameter_m"`

	// AreaConstant is k in distance ≈ k / sqrt(area). Uncalibrated.
	AreaConstant float64 `json:"area_constant"`
}

// DefaultKinematicsConfig returns the geometry of the reference robot.
func DefaultKinematicsConfig() KinematicsConfig {
	return KinematicsConfig{
		LaunchHeight:        0.3,
		TargetHeight:        1.2,
		LaunchAngleDeg:      45.0,
		SensorHeight:        0.25,
		SensorMountAngleDeg: 15.0,
		FlywheelDiameter:    0.1,
		AreaConstant:        50.0,
	}
}

// DistanceSource selects which sensor reading feeds the distance estimate.
type DistanceSource int

const (
	// DistanceFromTy uses the vertical offset and the sensor mount geometry.
	DistanceFromTy DistanceSource = iota
	// DistanceFromArea uses the apparent marker area.
	DistanceFromArea
	// DistanceFromTx feeds the horizontal offset into the angle estimator.
	// Only meaningful for a sensor mounted rotated by 90 degrees.
	DistanceFromTx
)

func (s DistanceSource) String() string {
	switch s {
	case DistanceFromTy:
		return "ty"
	case DistanceFromArea:
		return "area"
	case DistanceFromTx:
		return "tx"
	default:
		return fmt.Sprintf("DistanceSource(%d)", int(s))
	}
}

// ParseDistanceSource converts a setup-file name into a DistanceSource.
func ParseDistanceSource(value string) (DistanceSource, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "ty", "vertical":
		return DistanceFromTy, nil
	case "area", "ta":
		return DistanceFromArea, nil
	case "tx", "horizontal":
		return DistanceFromTx, nil
	default:
		return DistanceFromTy, fmt.Errorf("unknown distance source %q", value)
	}
}

// CoordinatorConfig holds auto-aim/shoot readiness parameters
type CoordinatorConfig struct {
	RPMTolerance   float64        `json:"rpm_tolerance"`
	DistanceSource DistanceSource `json:"-"`
}

// DefaultCoordinatorConfig returns a 50 RPM readiness band using Ty.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		RPMTolerance:   50,
		DistanceSource: DistanceFromTy,
	}
}

// FlywheelConfig holds software flywheel velocity loop parameters
type FlywheelConfig struct {
	Kp            float64 `json:"kp"`             // power per RPM of error
	Ki            float64 `json:"ki"`             // power per RPM·s
	Kd            float64 `json:"kd"`             // power per RPM/s
	Kff           float64 `json:"kff"`            // feedforward power per RPM of target
	IntegralLimit float64 `json:"integral_limit"` // RPM·s
	MaxPower      float64 `json:"max_power"`
}

// DefaultFlywheelConfig is tuned for a 6000 RPM free-speed motor.
func DefaultFlywheelConfig() FlywheelConfig {
	return FlywheelConfig{
		Kp:            0.0004,
		Ki:            0.0008,
		Kd:            0,
		Kff:           1.0 / 6000.0,
		IntegralLimit: 500,
		MaxPower:      1.0,
	}
}
