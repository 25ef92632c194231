package targeting

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// CycleReport is everything the coordinator decided in one cycle.
type CycleReport struct {
	HasTarget   bool
	Target      FiducialObservation
	OnTarget    bool
	Solution    VelocitySolution
	RequiredRPM float64 // -1 when no reachable solution
	CurrentRPM  float64
	AtSpeed     bool
	Ready       bool
	Turret      TurretState
}

// Coordinator fuses target selection, turret aim and launcher speed into a
// single ready-to-fire decision. It owns no goroutines; call Update once per
// control cycle.
type Coordinator struct {
	cfg      CoordinatorConfig
	sensor   AngleSensor
	turret   *TurretController
	solver   *Solver
	launcher LauncherVelocity
	group    TargetGroup

	last CycleReport
}

// NewCoordinator wires the collaborators together. All are required.
func NewCoordinator(cfg CoordinatorConfig, group TargetGroup, sensor AngleSensor,
	turret *TurretController, solver *Solver, launcher LauncherVelocity) (*Coordinator, error) {

	switch {
	case sensor == nil:
		return nil, fmt.Errorf("coordinator: sensor: %w", ErrMissingCollaborator)
	case turret == nil:
		return nil, fmt.Errorf("coordinator: turret: %w", ErrMissingCollaborator)
	case solver == nil:
		return nil, fmt.Errorf("coordinator: solver: %w", ErrMissingCollaborator)
	case launcher == nil:
		return nil, fmt.Errorf("coordinator: launcher: %w", ErrMissingCollaborator)
	}
	cfg.RPMTolerance = math.Abs(cfg.RPMTolerance)

	return &Coordinator{
		cfg:      cfg,
		sensor:   sensor,
		turret:   turret,
		solver:   solver,
		launcher: launcher,
		group:    group,
		last:     CycleReport{RequiredRPM: Unreachable},
	}, nil
}

// Update runs one control cycle and returns its report.
func (c *Coordinator) Update() CycleReport {
	c.sensor.Update()

	report := CycleReport{RequiredRPM: Unreachable}

	// Step 1: pick a target from this cycle's snapshot only
	var target FiducialObservation
	found := false
	if c.sensor.HasTarget() {
		target, found = SelectTarget(c.sensor.Observations(), c.group)
	}
	if !found {
		c.turret.UpdateNoTarget()
		c.launcher.Stop()
		report.CurrentRPM = c.launcher.CurrentRPM()
		report.Solution = unreachable(Unreachable)
		report.Turret = c.turret.State()
		c.last = report
		return report
	}
	report.HasTarget = true
	report.Target = target

	// Step 2: aim
	report.OnTarget = c.turret.Update(target.Offset.Tx)
	report.Turret = c.turret.State()

	// Step 3: range and solve
	report.Solution = c.solver.Solve(target.Offset, c.cfg.DistanceSource)
	if !report.Solution.Reachable {
		c.launcher.Stop()
		report.CurrentRPM = c.launcher.CurrentRPM()
		c.last = report
		return report
	}

	// Step 4: spin up
	report.RequiredRPM = report.Solution.RequiredRPM
	c.launcher.SetTargetRPM(report.RequiredRPM)

	// Step 5: readiness, from scratch every cycle
	report.CurrentRPM = c.launcher.CurrentRPM()
	report.AtSpeed = scalar.EqualWithinAbs(report.CurrentRPM, report.RequiredRPM, c.cfg.RPMTolerance)
	report.Ready = report.OnTarget && report.AtSpeed

	c.last = report
	return report
}

// Stop halts the turret and the launcher.
func (c *Coordinator) Stop() {
	c.turret.Stop()
	c.launcher.Stop()
	c.last.Ready = false
	c.last.Turret = c.turret.State()
}

// LastReport returns the most recent cycle report
func (c *Coordinator) LastReport() CycleReport { return c.last }

// Ready reports whether the last cycle was ready to fire
func (c *Coordinator) Ready() bool { return c.last.Ready }

// TargetGroup returns the active group
func (c *Coordinator) TargetGroup() TargetGroup { return c.group }

// SetTargetGroup switches the active group; takes effect next cycle
func (c *Coordinator) SetTargetGroup(g TargetGroup) { c.group = g }

// SetRPMTolerance sets the readiness band in RPM
func (c *Coordinator) SetRPMTolerance(tol float64) { c.cfg.RPMTolerance = math.Abs(tol) }

// SetDistanceSource selects the reading used for range estimation
func (c *Coordinator) SetDistanceSource(src DistanceSource) { c.cfg.DistanceSource = src }

// Config returns the active configuration
func (c *Coordinator) Config() CoordinatorConfig { return c.cfg }

// Turret returns the aim controller for manual control
func (c *Coordinator) Turret() *TurretController { return c.turret }

// Solver returns the kinematics solver for re-tuning
func (c *Coordinator) Solver() *Solver { return c.solver }

// RobotPose forwards the sensor's pose estimate when it provides one.
func (c *Coordinator) RobotPose() (Pose, bool) {
	if ps, ok := c.sensor.(PoseSource); ok {
		return ps.RobotPose()
	}
	return Pose{}, false
}
