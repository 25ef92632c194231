package main

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"turret-aim-core/targeting"
)

// SimPlant is a kinematic stand-in for the robot: a rate-limited turret, a
// first-order flywheel and a camera that sees one basket marker and an
// optional marker of the other alliance.
type SimPlant struct {
	cfg SimSetup
	kin targeting.KinematicsConfig

	heading float64 // deg, positive = CCW
	bearing float64 // target bearing, deg

	turretPower float64
	wheelPower  float64
	wheelRPM    float64

	velocityMode bool
	targetRPM    float64

	elapsed float64
}

// NewSimPlant starts the turret at heading 0 with the wheel at rest.
func NewSimPlant(cfg SimSetup, kin targeting.KinematicsConfig) *SimPlant {
	return &SimPlant{cfg: cfg, kin: kin, bearing: cfg.TargetBearingDeg}
}

// Step advances the plant by dt seconds.
func (p *SimPlant) Step(dt float64) {
	if dt <= 0 {
		return
	}
	p.elapsed += dt
	p.heading += p.turretPower * p.cfg.TurretMaxRateDegS * dt
	p.bearing += p.cfg.TargetDriftDegS * dt

	goal := p.wheelPower * p.cfg.FlywheelFreeRPM
	if p.velocityMode {
		goal = math.Min(p.targetRPM, p.cfg.FlywheelFreeRPM)
	}
	alpha := dt / p.cfg.FlywheelTauS
	if alpha > 1 {
		alpha = 1
	}
	p.wheelRPM += (goal - p.wheelRPM) * alpha
}

// Heading returns the turret heading in degrees.
func (p *SimPlant) Heading() float64 { return p.heading }

// Bearing returns the target bearing in degrees.
func (p *SimPlant) Bearing() float64 { return p.bearing }

// Elapsed returns simulated seconds.
func (p *SimPlant) Elapsed() float64 { return p.elapsed }

// offsetTo computes what the camera reports for a marker at bearing.
func (p *SimPlant) offsetTo(bearing, distance float64) (targeting.AngularOffset, bool) {
	tx := p.heading - bearing
	if math.Abs(tx) > p.cfg.HorizontalFOVDeg/2 {
		return targeting.AngularOffset{}, false
	}

	rise := p.kin.TargetHeight - p.kin.SensorHeight
	ty := math.Atan2(rise, distance)*180/math.Pi - p.kin.SensorMountAngleDeg

	area := 100.0
	if p.kin.AreaConstant > 0 {
		area = math.Min(100, math.Pow(p.kin.AreaConstant/distance, 2))
	}
	return targeting.AngularOffset{Tx: tx, Ty: ty, Area: area}, true
}

func (p *SimPlant) observe() []targeting.FiducialObservation {
	var out []targeting.FiducialObservation
	if off, ok := p.offsetTo(p.bearing, p.cfg.TargetDistanceM); ok {
		out = append(out, targeting.FiducialObservation{ID: p.cfg.TargetID, Offset: off})
	}
	if p.cfg.DecoyID != 0 {
		// farther away, so it is also smaller
		if off, ok := p.offsetTo(p.bearing+p.cfg.DecoyOffsetDeg, p.cfg.TargetDistanceM*1.5); ok {
			out = append(out, targeting.FiducialObservation{ID: p.cfg.DecoyID, Offset: off})
		}
	}
	return out
}

// Turret returns the plant's turret as an actuator.
func (p *SimPlant) Turret() targeting.RotationActuator { return simTurret{p} }

// Motor returns the flywheel as an open-loop power motor.
func (p *SimPlant) Motor() targeting.PowerMotor { return simMotor{p} }

// Launcher returns the flywheel with an ideal built-in velocity loop.
func (p *SimPlant) Launcher() targeting.LauncherVelocity { return simLauncher{p} }

// Vision returns a camera that samples the plant on every Update.
func (p *SimPlant) Vision() *SimVision { return &SimVision{plant: p} }

type simTurret struct{ p *SimPlant }

func (t simTurret) SetPower(power float64) { t.p.turretPower = targeting.ClampPower(power) }
func (t simTurret) CurrentPower() float64  { return t.p.turretPower }

type simMotor struct{ p *SimPlant }

func (m simMotor) SetPower(power float64) {
	m.p.velocityMode = false
	m.p.wheelPower = targeting.ClampFloat(power, 0, 1)
}
func (m simMotor) CurrentRPM() float64 { return m.p.wheelRPM }

type simLauncher struct{ p *SimPlant }

func (l simLauncher) SetTargetRPM(rpm float64) {
	if math.IsNaN(rpm) || rpm < 0 {
		rpm = 0
	}
	l.p.velocityMode = true
	l.p.targetRPM = rpm
}
func (l simLauncher) CurrentRPM() float64 { return l.p.wheelRPM }
func (l simLauncher) Stop() {
	l.p.velocityMode = false
	l.p.targetRPM = 0
	l.p.wheelPower = 0
}

// SimVision is the simulated camera.
type SimVision struct {
	plant *SimPlant
	obs   []targeting.FiducialObservation
}

func (v *SimVision) Update() { v.obs = v.plant.observe() }

func (v *SimVision) HasTarget() bool { return len(v.obs) > 0 }

func (v *SimVision) Observations() []targeting.FiducialObservation { return v.obs }

// RobotPose places the basket at the field origin.
func (v *SimVision) RobotPose() (targeting.Pose, bool) {
	if len(v.obs) == 0 {
		return targeting.Pose{}, false
	}
	b := v.plant.bearing * math.Pi / 180
	d := v.plant.cfg.TargetDistanceM
	pos := r3.Scale(-d, r3.Vec{X: math.Cos(b), Y: math.Sin(b)})
	return targeting.Pose{Position: pos, Yaw: v.plant.heading}, true
}
