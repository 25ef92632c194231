package targeting

import (
	"fmt"
	"math"

	"github.com/felixge/pidctrl"
)

// AimState is the turret controller's per-cycle classification.
type AimState int

const (
	AimStopped AimState = iota
	AimSeeking
	AimOnTarget
)

func (s AimState) String() string {
	switch s {
	case AimStopped:
		return "STOPPED"
	case AimSeeking:
		return "SEEKING"
	case AimOnTarget:
		return "ON_TARGET"
	default:
		return fmt.Sprintf("AimState(%d)", int(s))
	}
}

// TurretState is a read-only snapshot of the controller for telemetry.
type TurretState struct {
	CommandedPower float64
	Direction      Direction
	Aim            AimState
	LastErrorDeg   float64
}

// TurretController implements proportional aim with a friction floor and a
// deadband around zero error.
type TurretController struct {
	cfg AimConfig
	act RotationActuator
	pid *pidctrl.PIDController

	// State
	power     float64
	aim       AimState
	lastError float64
}

// NewTurretController creates a stopped controller driving act.
func NewTurretController(cfg AimConfig, act RotationActuator) *TurretController {
	if cfg.Period <= 0 {
		cfg.Period = DefaultAimConfig().Period
	}
	pid := pidctrl.NewPIDController(cfg.ProportionalGain, 0, 0)
	pid.SetOutputLimits(-1, 1)
	pid.Set(0)

	tc := &TurretController{
		cfg: cfg,
		act: act,
		pid: pid,
	}
	tc.SetPower(0)
	return tc
}

// Update aims at a target errDeg degrees off boresight (positive = right).
// A NaN or infinite error is treated as no target.
//
// Returns: true when the error is inside the tolerance band
func (tc *TurretController) Update(errDeg float64) bool {
	if !finite(errDeg) {
		tc.UpdateNoTarget()
		return false
	}
	tc.lastError = errDeg

	if math.Abs(errDeg) < tc.cfg.TargetToleranceDeg {
		tc.SetPower(0)
		tc.aim = AimOnTarget
		return true
	}

	// Setpoint is zero error, so the P-only output is already -gain*e,
	// which rotates toward the target.
	power := tc.pid.UpdateDuration(errDeg, tc.cfg.Period)

	// Friction floor
	if math.Abs(power) < tc.cfg.MinimumPower {
		s := sign(power)
		if s == 0 {
			s = -sign(errDeg)
		}
		power = s * tc.cfg.MinimumPower
	}

	tc.SetPower(power)
	tc.aim = AimSeeking
	return false
}

// UpdateNoTarget handles a cycle without a usable target.
func (tc *TurretController) UpdateNoTarget() {
	tc.Stop()
}

// SetPower commands the actuator directly, clamped to [-1, 1].
func (tc *TurretController) SetPower(p float64) {
	tc.power = ClampPower(p)
	if tc.act != nil {
		tc.act.SetPower(tc.power)
	}
}

// Stop zeroes the commanded power.
func (tc *TurretController) Stop() {
	tc.SetPower(0)
	tc.aim = AimStopped
}

// CommandedPower returns the last power sent to the actuator
func (tc *TurretController) CommandedPower() float64 {
	return tc.power
}

// Direction returns the rotation implied by the commanded power
func (tc *TurretController) Direction() Direction {
	return DirectionOf(tc.power)
}

// OnTarget reports whether the last update was inside the tolerance band
func (tc *TurretController) OnTarget() bool {
	return tc.aim == AimOnTarget
}

// State returns the controller state for logging/telemetry
func (tc *TurretController) State() TurretState {
	return TurretState{
		CommandedPower: tc.power,
		Direction:      tc.Direction(),
		Aim:            tc.aim,
		LastErrorDeg:   tc.lastError,
	}
}

// Config returns the active tuning
func (tc *TurretController) Config() AimConfig {
	return tc.cfg
}

// SetProportionalGain changes aim responsiveness. Higher values respond
// faster but oscillate more.
func (tc *TurretController) SetProportionalGain(kP float64) {
	tc.cfg.ProportionalGain = kP
	tc.pid.SetPID(kP, 0, 0)
}

// SetMinimumPower sets the friction floor
func (tc *TurretController) SetMinimumPower(minPower float64) {
	tc.cfg.MinimumPower = math.Abs(minPower)
}

// SetTargetTolerance sets the aim deadband in degrees
func (tc *TurretController) SetTargetTolerance(tolDeg float64) {
	tc.cfg.TargetToleranceDeg = math.Abs(tolDeg)
}
