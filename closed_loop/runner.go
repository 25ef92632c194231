package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"turret-aim-core/targeting"
	"turret-aim-core/utils"
)

// canBus is everything the runner needs to talk to hardware over CAN.
type canBus struct {
	cmap     *utils.CANMap
	frames   *commandFrames
	writer   utils.CANWriter
	reader   utils.CANReader
	launcher *CANLauncher
}

type Runner struct {
	setup Setup
	log   *utils.Logger
	runID string

	coord    *targeting.Coordinator
	flywheel *targeting.FlywheelController // power mode only

	plant  *SimPlant     // sim mode
	bus    *canBus       // can mode
	vision *SerialVision // can mode

	cycles   uint64
	sent     uint64
	wasReady bool
}

// NewRunner opens every device named in setup and wires the coordinator.
func NewRunner(ctx context.Context, setup Setup, log *utils.Logger) (*Runner, error) {
	switch setup.Meta.Mode {
	case "sim":
		return newSimRunner(setup, log)
	case "can":
	default:
		return nil, fmt.Errorf("unknown mode %q", setup.Meta.Mode)
	}

	cmap, err := utils.LoadCANMap(setup.Devices.CANMap)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, setup.Devices.CANInterface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, setup.Devices.CANInterface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	d := setup.Devices
	vision, err := OpenSerialVision(d.VisionName, d.VisionPort, d.VisionBaud, d.MaxMissedCycles, log)
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("vision: %w", err)
	}

	r, err := newCANRunner(setup, log, cmap, writer, reader, vision)
	if err != nil {
		vision.Close()
		reader.Close()
		writer.Close()
		return nil, err
	}
	return r, nil
}

func newSimRunner(setup Setup, log *utils.Logger) (*Runner, error) {
	r := newRunner(setup, log)
	r.plant = NewSimPlant(setup.Sim, setup.Kinematics)

	if err := r.assemble(r.plant.Turret(), r.plant.Vision(), r.plant.Launcher(), r.plant.Motor()); err != nil {
		return nil, err
	}
	return r, nil
}

func newCANRunner(setup Setup, log *utils.Logger, cmap *utils.CANMap,
	writer utils.CANWriter, reader utils.CANReader, vision *SerialVision) (*Runner, error) {

	frames := newCommandFrames(cmap)
	turret, err := NewCANTurret(frames, setup.Devices.TurretServos)
	if err != nil {
		return nil, fmt.Errorf("turret: %w", err)
	}
	launcher, err := NewCANLauncher(frames, setup.Devices.LauncherMotor, setup.Launcher.TicksPerRev)
	if err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}

	r := newRunner(setup, log)
	r.bus = &canBus{cmap: cmap, frames: frames, writer: writer, reader: reader, launcher: launcher}
	r.vision = vision

	var act targeting.RotationActuator = turret
	if setup.Devices.TurretInverted {
		act = targeting.Inverted(act)
	}
	if err := r.assemble(act, vision, launcher, launcher); err != nil {
		return nil, err
	}
	return r, nil
}

func newRunner(setup Setup, log *utils.Logger) *Runner {
	id := uuid.NewString()
	log.SetPrefix("run=" + id[:8])
	return &Runner{setup: setup, log: log, runID: id}
}

// assemble builds the controllers. In power mode the software flywheel loop
// sits between the coordinator and the motor.
func (r *Runner) assemble(act targeting.RotationActuator, sensor targeting.AngleSensor,
	velocity targeting.LauncherVelocity, motor targeting.PowerMotor) error {

	launcher := velocity
	if r.setup.Launcher.Mode == "power" {
		r.flywheel = targeting.NewFlywheelController(r.setup.Launcher.Flywheel, motor)
		launcher = r.flywheel
	}

	group, err := r.setup.TargetGroup()
	if err != nil {
		return err
	}
	cfg, err := r.setup.CoordinatorConfig()
	if err != nil {
		return err
	}

	turret := targeting.NewTurretController(r.setup.AimConfig(), act)
	solver := targeting.NewSolver(r.setup.Kinematics)
	r.coord, err = targeting.NewCoordinator(cfg, group, sensor, turret, solver, launcher)
	return err
}

// RunID identifies this run in the log.
func (r *Runner) RunID() string { return r.runID }

// Coordinator exposes the wired coordinator.
func (r *Runner) Coordinator() *targeting.Coordinator { return r.coord }

func (r *Runner) Close() {
	if r.vision != nil {
		_ = r.vision.Close()
	}
	if r.bus != nil {
		if r.bus.reader != nil {
			_ = r.bus.reader.Close()
		}
		if r.bus.writer != nil {
			_ = r.bus.writer.Close()
		}
	}
}

// Step runs one control cycle of dt seconds: coordinator, flywheel loop,
// then the plant (sim) or the bus (can).
func (r *Runner) Step(ctx context.Context, dt float64) (targeting.CycleReport, error) {
	report := r.coord.Update()

	power := 0.0
	if r.flywheel != nil {
		power = r.flywheel.Update(dt)
	}

	if r.plant != nil {
		r.plant.Step(dt)
	}
	if err := r.flush(ctx); err != nil {
		return report, err
	}

	r.cycles++
	r.logCycle(report, power)
	return report, nil
}

func (r *Runner) flush(ctx context.Context) error {
	if r.bus == nil {
		return nil
	}
	frames, err := r.bus.frames.encode()
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := r.bus.writer.WriteFrame(ctx, f); err != nil {
			return fmt.Errorf("transmit 0x%X: %w", f.ID, err)
		}
		r.sent++
		r.log.Trace("TX id=0x%X len=%d data=% X", f.ID, f.Length, f.Data[:f.Length])
	}
	return nil
}

func (r *Runner) logCycle(report targeting.CycleReport, power float64) {
	if report.Ready != r.wasReady {
		if report.Ready {
			r.log.Info("READY tag=%d tx=%.2f dist=%.2fm rpm=%.0f/%.0f",
				report.Target.ID, report.Target.Offset.Tx, report.Solution.Distance,
				report.CurrentRPM, report.RequiredRPM)
		} else {
			r.log.Info("not ready: target=%v on_target=%v at_speed=%v",
				report.HasTarget, report.OnTarget, report.AtSpeed)
		}
		r.wasReady = report.Ready
	}

	if r.cycles%uint64(r.setup.Timing.DiagEvery) != 0 {
		return
	}
	r.log.Debug("cycle=%d target=%v tag=%d aim=%s power=%.3f dir=%s reachable=%v rpm=%.0f/%.0f",
		r.cycles, report.HasTarget, report.Target.ID, report.Turret.Aim, report.Turret.CommandedPower,
		report.Turret.Direction, report.Solution.Reachable, report.CurrentRPM, report.RequiredRPM)
	if r.flywheel != nil {
		diag := r.flywheel.GetDiagnostics()
		r.log.Debug("flywheel: err=%.1f P=%.3f I=%.3f FF=%.3f power=%.3f",
			diag.Error, diag.P, diag.I, diag.FF, power)
	}
	if pose, ok := r.coord.RobotPose(); ok {
		r.log.Trace("pose x=%.2f y=%.2f yaw=%.1f", pose.Position.X, pose.Position.Y, pose.Yaw)
	}
}

// Run cycles until ctx ends or the configured duration elapses. The
// launcher and turret are always stopped on the way out.
func (r *Runner) Run(ctx context.Context) error {
	period := r.setup.Period()
	dt := period.Seconds()

	r.log.Info("Starting: setup=%s mode=%s launcher=%s group=%s cycle_ms=%d duration=%.2fs run_id=%s",
		r.setup.Meta.Name, r.setup.Meta.Mode, r.setup.Launcher.Mode, r.coord.TargetGroup().Name,
		r.setup.Timing.CycleMS, r.setup.Timing.DurationS, r.runID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.vision != nil {
		go func() {
			if err := r.vision.Monitor(runCtx); err != nil {
				r.log.Error("vision monitor stopped: %v", err)
			}
		}()
	}

	var feedback chan map[string]float64
	if r.bus != nil && r.bus.reader != nil {
		feedback = make(chan map[string]float64, 16)
		go r.receiveLoop(runCtx, feedback)
	}

	start := time.Now()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var endAfter time.Duration
	if r.setup.Timing.DurationS > 0 {
		endAfter = time.Duration(r.setup.Timing.DurationS * float64(time.Second))
	}

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping")
			r.shutdown()
			return ctx.Err()

		case values := <-feedback:
			if r.bus.launcher.ApplyFeedback(values) {
				r.log.Trace("RX launcher rpm=%.0f", r.bus.launcher.CurrentRPM())
			}

		case now := <-ticker.C:
			if endAfter > 0 && now.Sub(start) > endAfter {
				r.shutdown()
				return nil
			}
			if _, err := r.Step(ctx, dt); err != nil {
				r.log.Critical("Cycle %d failed: %v", r.cycles, err)
				r.shutdown()
				return err
			}
		}
	}
}

func (r *Runner) shutdown() {
	r.coord.Stop()
	if r.flywheel != nil {
		r.flywheel.Stop()
	}

	// ctx is already gone; give the final stop frames their own deadline
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := r.flush(ctx); err != nil {
		r.log.Error("final stop frames: %v", err)
	}
	r.log.Info("Completed. cycles=%d frames_sent=%d", r.cycles, r.sent)
}

// receiveLoop decodes frames from the bus and forwards known receive
// frames to the cycle goroutine.
func (r *Runner) receiveLoop(ctx context.Context, feedback chan<- map[string]float64) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		frame, err := r.bus.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, utils.ErrReceiveClosed) {
				r.log.Error("RX: %v", err)
				return
			}
			r.log.Error("RX error: %v", err)
			continue
		}

		fd, err := r.bus.cmap.FrameByID(frame.ID)
		if err != nil || fd.Direction != "rx" {
			r.log.Trace("RX ignored id=0x%X len=%d", frame.ID, frame.Length)
			continue
		}
		values, err := r.bus.cmap.DecodeEinrideFrame(frame)
		if err != nil {
			r.log.Warn("RX decode %s: %v", fd.Name, err)
			continue
		}

		select {
		case feedback <- values:
		default:
			// cycle loop is behind, next frame will carry a fresher value
		}
	}
}
