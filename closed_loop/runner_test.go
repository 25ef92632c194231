package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.einride.tech/can"
	"gonum.org/v1/gonum/spatial/r3"

	"turret-aim-core/targeting"
	"turret-aim-core/utils"
)

type fakeWriter struct {
	frames []can.Frame
	err    error
}

func (w *fakeWriter) WriteFrame(_ context.Context, f can.Frame) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, f)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func simSetup(t *testing.T) Setup {
	t.Helper()
	s := DefaultSetup()
	require.NoError(t, s.Validate())
	return s
}

// runUntilReady steps the runner until it reports Ready or maxCycles pass.
func runUntilReady(t *testing.T, r *Runner, maxCycles int) (targeting.CycleReport, int) {
	t.Helper()
	dt := r.setup.Period().Seconds()
	var report targeting.CycleReport
	for i := 1; i <= maxCycles; i++ {
		var err error
		report, err = r.Step(context.Background(), dt)
		require.NoError(t, err)
		if report.Ready {
			return report, i
		}
	}
	return report, maxCycles
}

func TestSimRunner_VelocityLauncherReachesReady(t *testing.T) {
	var buf bytes.Buffer
	r, err := newSimRunner(simSetup(t), utils.NewWriterLogger(&buf, utils.DEBUG))
	require.NoError(t, err)

	report, _ := runUntilReady(t, r, 500)
	require.True(t, report.Ready)
	assert.Equal(t, 11, report.Target.ID)
	assert.InDelta(t, 2.0, report.Solution.Distance, 0.01)
	assert.InDelta(t, 5.973, report.Solution.LaunchVelocity, 0.01)
	assert.Less(t, math.Abs(r.plant.Heading()-r.plant.Bearing()), 2.0)

	assert.Contains(t, buf.String(), "READY tag=11")
	assert.Contains(t, buf.String(), "run="+r.RunID()[:8])

	pose, ok := r.Coordinator().RobotPose()
	require.True(t, ok)
	assert.InDelta(t, 2.0, r3.Norm(pose.Position), 1e-9)
}

func TestSimRunner_PowerLauncherReachesReady(t *testing.T) {
	s := simSetup(t)
	s.Launcher.Mode = "power"
	s.Timing.DiagEvery = 1
	var buf bytes.Buffer
	r, err := newSimRunner(s, utils.NewWriterLogger(&buf, utils.DEBUG))
	require.NoError(t, err)
	require.NotNil(t, r.flywheel)

	report, _ := runUntilReady(t, r, 1500)
	require.True(t, report.Ready)
	assert.InDelta(t, report.RequiredRPM, report.CurrentRPM, s.Coordinator.RPMTolerance)
	assert.Contains(t, buf.String(), "flywheel: err=")
}

func TestSimRunner_OtherAllianceGroup(t *testing.T) {
	s := simSetup(t)
	s.Coordinator.TargetGroup = "blue"
	r, err := newSimRunner(s, testLogger())
	require.NoError(t, err)

	report, _ := runUntilReady(t, r, 500)
	require.True(t, report.Ready)
	assert.Equal(t, 14, report.Target.ID)
	assert.InDelta(t, 3.0, report.Solution.Distance, 0.01)
}

func TestSimRunner_TargetOutsideFieldOfView(t *testing.T) {
	s := simSetup(t)
	s.Sim.TargetBearingDeg = 60
	s.Sim.DecoyID = 0
	r, err := newSimRunner(s, testLogger())
	require.NoError(t, err)

	report, n := runUntilReady(t, r, 50)
	assert.Equal(t, 50, n)
	assert.False(t, report.HasTarget)
	assert.Equal(t, 0.0, report.Turret.CommandedPower)
	assert.Equal(t, 0.0, r.plant.Heading())
	assert.Equal(t, targeting.Unreachable, report.RequiredRPM)
}

func newTestCANRunner(t *testing.T, w *fakeWriter) (*Runner, *SerialVision) {
	t.Helper()
	s := DefaultSetup()
	s.Meta.Mode = "can"
	require.NoError(t, s.Validate())

	vision := NewSerialVision("limelight", io.NopCloser(strings.NewReader("")), 3, testLogger())
	r, err := newCANRunner(s, testLogger(), loadCANMap(t), w, nil, vision)
	require.NoError(t, err)
	return r, vision
}

func TestCANRunner_StepTransmitsCommands(t *testing.T) {
	w := &fakeWriter{}
	r, vision := newTestCANRunner(t, w)

	vision.updates <- visionSnapshot{valid: true, obs: []targeting.FiducialObservation{
		{ID: 12, Offset: targeting.AngularOffset{Tx: 10, Ty: 10.4, Area: 1}},
	}}
	report, err := r.Step(context.Background(), 0.02)
	require.NoError(t, err)
	require.True(t, report.Solution.Reachable)

	// LAUNCHER_CMD sorts before TURRET_CMD
	require.Len(t, w.frames, 2)
	assert.Equal(t, uint32(0x220), w.frames[0].ID)
	assert.Equal(t, uint32(0x210), w.frames[1].ID)

	cmap := r.bus.cmap
	launcher, err := cmap.DecodeEinrideFrame(w.frames[0])
	require.NoError(t, err)
	assert.InDelta(t, report.RequiredRPM*145.1/60, launcher["shooterMotor_target_tps"], 0.1)

	// target right of center: platform turns right (negative), servos are
	// geared in reverse so they see positive power
	turret, err := cmap.DecodeEinrideFrame(w.frames[1])
	require.NoError(t, err)
	assert.InDelta(t, -0.2, report.Turret.CommandedPower, 1e-9)
	assert.InDelta(t, 0.2, turret["turretLeft"], 1e-4)
	assert.InDelta(t, 0.2, turret["turretRight"], 1e-4)
}

func TestCANRunner_FeedbackMakesReady(t *testing.T) {
	w := &fakeWriter{}
	r, vision := newTestCANRunner(t, w)
	target := targeting.FiducialObservation{ID: 11, Offset: targeting.AngularOffset{Tx: 0.5, Ty: 10.4, Area: 1}}

	vision.updates <- visionSnapshot{valid: true, obs: []targeting.FiducialObservation{target}}
	report, err := r.Step(context.Background(), 0.02)
	require.NoError(t, err)
	assert.True(t, report.OnTarget)
	assert.False(t, report.Ready)

	r.bus.launcher.ApplyFeedback(map[string]float64{
		"shooterMotor_measured_tps": r.bus.launcher.RPMToTicksPerSecond(report.RequiredRPM),
	})
	vision.updates <- visionSnapshot{valid: true, obs: []targeting.FiducialObservation{target}}
	report, err = r.Step(context.Background(), 0.02)
	require.NoError(t, err)
	assert.True(t, report.Ready)
}

func TestCANRunner_WriteErrorSurfaces(t *testing.T) {
	busErr := errors.New("bus off")
	r, _ := newTestCANRunner(t, &fakeWriter{err: busErr})

	_, err := r.Step(context.Background(), 0.02)
	assert.ErrorIs(t, err, busErr)
}

func TestNewCANRunner_MissingServo(t *testing.T) {
	s := DefaultSetup()
	s.Meta.Mode = "can"
	s.Devices.TurretServos = []string{"turretLeft", "turretCenter"}
	require.NoError(t, s.Validate())

	vision := NewSerialVision("limelight", io.NopCloser(strings.NewReader("")), 3, testLogger())
	_, err := newCANRunner(s, testLogger(), loadCANMap(t), &fakeWriter{}, nil, vision)

	var devErr *targeting.DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "turretCenter", devErr.Name)
}

func TestRunner_RunStopsAfterDuration(t *testing.T) {
	s := simSetup(t)
	s.Timing.DurationS = 0.1
	r, err := NewRunner(context.Background(), s, testLogger())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Run(context.Background()))
	assert.Greater(t, r.cycles, uint64(0))
	assert.False(t, r.Coordinator().Ready())
}

func TestRunner_RunCanceled(t *testing.T) {
	r, err := NewRunner(context.Background(), simSetup(t), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)
}

func TestCANRunner_ShutdownSendsStop(t *testing.T) {
	w := &fakeWriter{}
	r, vision := newTestCANRunner(t, w)

	vision.updates <- visionSnapshot{valid: true, obs: []targeting.FiducialObservation{
		{ID: 11, Offset: targeting.AngularOffset{Tx: 8, Ty: 10.4, Area: 1}},
	}}
	_, err := r.Step(context.Background(), 0.02)
	require.NoError(t, err)

	w.frames = nil
	r.shutdown()
	require.NotEmpty(t, w.frames)
	for _, f := range w.frames {
		values, err := r.bus.cmap.DecodeEinrideFrame(f)
		require.NoError(t, err)
		for name, v := range values {
			assert.Equal(t, 0.0, v, name)
		}
	}
}
