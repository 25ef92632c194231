package targeting

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Gravity is the gravitational acceleration in m/s².
const Gravity = 9.81

// Unreachable is the sentinel returned when no physical solution exists.
const Unreachable = -1.0

// ceilingTolerance is how close d·tanθ may come to the height difference, in
// metres, before the shot counts as flat against the ceiling.
const ceilingTolerance = 1e-9

// VelocitySolution is the launcher requirement for one target estimate.
// When Reachable is false every numeric field except Distance is -1.
type VelocitySolution struct {
	Distance       float64 // m
	LaunchVelocity float64 // m/s
	RequiredRPM    float64
	TimeOfFlight   float64 // s
	Reachable      bool
}

func unreachable(distance float64) VelocitySolution {
	return VelocitySolution{
		Distance:       distance,
		LaunchVelocity: Unreachable,
		RequiredRPM:    Unreachable,
		TimeOfFlight:   Unreachable,
	}
}

// Solver converts distance and sensor angles into launch requirements using
// drag-free projectile motion.
type Solver struct {
	cfg KinematicsConfig
}

// NewSolver creates a solver over the given geometry
func NewSolver(cfg KinematicsConfig) *Solver {
	return &Solver{cfg: cfg}
}

// Config returns the current geometry
func (s *Solver) Config() KinematicsConfig { return s.cfg }

// SetConfig replaces the geometry
func (s *Solver) SetConfig(cfg KinematicsConfig) { s.cfg = cfg }

// ConfigureLauncher updates launcher geometry (heights in m, angle in degrees)
func (s *Solver) ConfigureLauncher(launchHeight, targetHeight, launchAngleDeg float64) {
	s.cfg.LaunchHeight = launchHeight
	s.cfg.TargetHeight = targetHeight
	s.cfg.LaunchAngleDeg = launchAngleDeg
}

// ConfigureSensor updates camera height and mount tilt
func (s *Solver) ConfigureSensor(sensorHeight, mountAngleDeg float64) {
	s.cfg.SensorHeight = sensorHeight
	s.cfg.SensorMountAngleDeg = mountAngleDeg
}

// SetFlywheelDiameter updates the RPM conversion diameter
func (s *Solver) SetFlywheelDiameter(d float64) { s.cfg.FlywheelDiameter = d }

// SetAreaConstant updates the area-to-distance calibration constant
func (s *Solver) SetAreaConstant(k float64) { s.cfg.AreaConstant = k }

func (s *Solver) heightDiff() float64 {
	return s.cfg.TargetHeight - s.cfg.LaunchHeight
}

// LaunchVelocity returns the launch speed needed to hit the target at
// horizontal distance d with the configured launch angle:
//
//	v = sqrt(g·d² / (2·cos²θ·(d·tanθ − h)))
//
// Returns -1 when the target cannot be reached at this angle.
func (s *Solver) LaunchVelocity(d float64) float64 {
	if !finite(d) || d <= 0 {
		return Unreachable
	}
	if math.Abs(s.cfg.LaunchAngleDeg) >= 90 {
		return Unreachable
	}
	theta := degToRad(s.cfg.LaunchAngleDeg)
	cos := math.Cos(theta)

	// d·tanθ at or below h never clears the rim; rounding can leave a
	// tiny positive margin exactly at the ceiling
	margin := d*math.Tan(theta) - s.heightDiff()
	if margin <= 0 || scalar.EqualWithinAbs(margin, 0, ceilingTolerance) {
		return Unreachable
	}
	v := math.Sqrt(Gravity * d * d / (2 * cos * cos * margin))
	if !finite(v) {
		return Unreachable
	}
	return v
}

// DistanceFromVerticalAngle estimates horizontal distance from the marker's
// vertical offset ty and the sensor mount geometry.
func (s *Solver) DistanceFromVerticalAngle(ty float64) (float64, bool) {
	total := s.cfg.SensorMountAngleDeg + ty
	if !finite(total) || math.Abs(total) >= 90 {
		return Unreachable, false
	}
	t := math.Tan(degToRad(total))
	if t == 0 {
		return Unreachable, false
	}
	distance := (s.cfg.TargetHeight - s.cfg.SensorHeight) / t
	if !finite(distance) || distance <= 0 {
		return Unreachable, false
	}
	return distance, true
}

// DistanceFromArea is a rough estimate, distance ≈ k / sqrt(area).
// Non-positive area yields math.MaxFloat64.
func (s *Solver) DistanceFromArea(area float64) float64 {
	if !(area > 0) {
		return math.MaxFloat64
	}
	return s.cfg.AreaConstant / math.Sqrt(area)
}

// OptimalAngle returns the shallower launch angle in degrees that reaches
// distance d at speed v, or -1 if v is too slow.
func (s *Solver) OptimalAngle(d, v float64) float64 {
	angle, ok := s.solveAngle(d, v)
	if !ok {
		return Unreachable
	}
	return angle
}

// IsTargetReachable reports whether speed v can reach distance d at any angle.
func (s *Solver) IsTargetReachable(d, v float64) bool {
	_, ok := s.solveAngle(d, v)
	return ok
}

func (s *Solver) solveAngle(d, v float64) (float64, bool) {
	if !finite(d) || !finite(v) || d <= 0 {
		return Unreachable, false
	}
	h := s.heightDiff()
	v2 := v * v
	gd := Gravity * d

	discriminant := v2*v2 - Gravity*(Gravity*d*d+2*h*v2)
	if discriminant < 0 {
		return Unreachable, false
	}
	root := math.Sqrt(discriminant)
	low := math.Atan((v2 - root) / gd)
	high := math.Atan((v2 + root) / gd)
	return radToDeg(math.Min(low, high)), true
}

// TimeOfFlight returns d / (v·cosθ) at the configured launch angle.
func (s *Solver) TimeOfFlight(d, v float64) float64 {
	if !(v > 0) || !finite(d) || math.Abs(s.cfg.LaunchAngleDeg) >= 90 {
		return Unreachable
	}
	return d / (v * math.Cos(degToRad(s.cfg.LaunchAngleDeg)))
}

// SolveDistance computes the full solution for a known horizontal distance
func (s *Solver) SolveDistance(d float64) VelocitySolution {
	v := s.LaunchVelocity(d)
	if v < 0 {
		return unreachable(d)
	}
	if !(s.cfg.FlywheelDiameter > 0) {
		return unreachable(d)
	}
	return VelocitySolution{
		Distance:       d,
		LaunchVelocity: v,
		RequiredRPM:    VelocityToRPM(v, s.cfg.FlywheelDiameter),
		TimeOfFlight:   s.TimeOfFlight(d, v),
		Reachable:      true,
	}
}

// SolveVerticalAngle estimates distance from ty and solves for it
func (s *Solver) SolveVerticalAngle(ty float64) VelocitySolution {
	d, ok := s.DistanceFromVerticalAngle(ty)
	if !ok {
		return unreachable(Unreachable)
	}
	return s.SolveDistance(d)
}

// SolveArea estimates distance from marker area and solves for it
func (s *Solver) SolveArea(area float64) VelocitySolution {
	return s.SolveDistance(s.DistanceFromArea(area))
}

// Solve dispatches on the distance source for one observation
func (s *Solver) Solve(off AngularOffset, src DistanceSource) VelocitySolution {
	switch src {
	case DistanceFromArea:
		return s.SolveArea(off.Area)
	case DistanceFromTx:
		return s.SolveVerticalAngle(off.Tx)
	default:
		return s.SolveVerticalAngle(off.Ty)
	}
}

// RPMToVelocity converts flywheel RPM to surface speed in m/s
func RPMToVelocity(rpm, wheelDiameter float64) float64 {
	return (rpm / 60.0) * math.Pi * wheelDiameter
}

// VelocityToRPM converts surface speed in m/s to flywheel RPM
func VelocityToRPM(velocity, wheelDiameter float64) float64 {
	return (velocity / (math.Pi * wheelDiameter)) * 60.0
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }
func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }
