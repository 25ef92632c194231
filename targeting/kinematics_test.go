package targeting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSolver() *Solver {
	return NewSolver(DefaultKinematicsConfig())
}

func TestLaunchVelocity_ReferenceScenario(t *testing.T) {
	s := newTestSolver()

	// v = sqrt(9.81·4 / (2·0.5·(2·1 − 0.9)))
	want := math.Sqrt(9.81 * 4 / (2 * 0.5 * (2*1 - 0.9)))
	v := s.LaunchVelocity(2.0)
	assert.InDelta(t, want, v, 1e-9)
	assert.InDelta(t, 5.973, v, 1e-3)

	sol := s.SolveDistance(2.0)
	assert.True(t, sol.Reachable)
	assert.InDelta(t, want, sol.LaunchVelocity, 1e-9)
	assert.InDelta(t, VelocityToRPM(want, 0.1), sol.RequiredRPM, 1e-9)
	assert.InDelta(t, 2.0/(want*math.Cos(math.Pi/4)), sol.TimeOfFlight, 1e-9)
}

func TestLaunchVelocity_Unreachable(t *testing.T) {
	s := newTestSolver()

	tests := []struct {
		name string
		d    float64
	}{
		{"below flat ceiling", 0.5},
		{"exactly at ceiling", 0.9},
		{"zero distance", 0},
		{"negative distance", -3},
		{"infinite distance", math.Inf(1)},
		{"NaN distance", math.NaN()},
		{"max float distance", math.MaxFloat64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Unreachable, s.LaunchVelocity(tt.d))
			sol := s.SolveDistance(tt.d)
			assert.False(t, sol.Reachable)
			assert.Equal(t, Unreachable, sol.LaunchVelocity)
			assert.Equal(t, Unreachable, sol.RequiredRPM)
		})
	}
}

func TestLaunchVelocity_FlatCeilingProperty(t *testing.T) {
	s := newTestSolver()
	for _, angle := range []float64{10, 30, 45, 60, 75} {
		cfg := s.Config()
		cfg.LaunchAngleDeg = angle
		s.SetConfig(cfg)

		h := cfg.TargetHeight - cfg.LaunchHeight
		ceiling := h / math.Tan(degToRad(angle))
		for _, frac := range []float64{0.1, 0.5, 0.99} {
			d := ceiling * frac
			assert.Equal(t, Unreachable, s.LaunchVelocity(d), "angle=%v d=%v", angle, d)
		}
		assert.Greater(t, s.LaunchVelocity(ceiling*1.5), 0.0, "angle=%v", angle)
	}
}

func TestLaunchVelocity_ExactlyAtCeiling(t *testing.T) {
	s := newTestSolver()
	for _, angle := range []float64{10, 20, 30, 40, 45, 50, 60, 70, 75, 85} {
		cfg := s.Config()
		cfg.LaunchAngleDeg = angle
		s.SetConfig(cfg)

		d := (cfg.TargetHeight - cfg.LaunchHeight) / math.Tan(degToRad(angle))
		for _, dd := range []float64{d, math.Nextafter(d, 0), math.Nextafter(d, math.Inf(1))} {
			assert.Equal(t, Unreachable, s.LaunchVelocity(dd), "angle=%v d=%v", angle, dd)

			sol := s.SolveDistance(dd)
			assert.False(t, sol.Reachable, "angle=%v d=%v", angle, dd)
			assert.Equal(t, Unreachable, sol.RequiredRPM, "angle=%v d=%v", angle, dd)
		}
	}
}

func TestLaunchVelocity_VerticalLaunchAngle(t *testing.T) {
	s := newTestSolver()
	s.ConfigureLauncher(0.3, 1.2, 90)
	assert.Equal(t, Unreachable, s.LaunchVelocity(2))
	assert.Equal(t, Unreachable, s.TimeOfFlight(2, 5))
}

func TestDistanceFromVerticalAngle(t *testing.T) {
	s := newTestSolver()

	// mount 15° + ty 10° = 25°, height diff 1.2 − 0.25
	d, ok := s.DistanceFromVerticalAngle(10)
	require.True(t, ok)
	assert.InDelta(t, 0.95/math.Tan(degToRad(25)), d, 1e-12)

	tests := []struct {
		name string
		ty   float64
	}{
		{"total angle 90", 75},
		{"total angle beyond 90", 80},
		{"total angle -90", -105},
		{"level with sensor", -15},
		{"below horizon", -30},
		{"NaN", math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := s.DistanceFromVerticalAngle(tt.ty)
			assert.False(t, ok)
			assert.Equal(t, Unreachable, d)
			assert.False(t, s.SolveVerticalAngle(tt.ty).Reachable)
		})
	}
}

func TestSolveVerticalAngle_MatchesDistancePath(t *testing.T) {
	s := newTestSolver()
	d, ok := s.DistanceFromVerticalAngle(5)
	require.True(t, ok)

	viaAngle := s.SolveVerticalAngle(5)
	viaDistance := s.SolveDistance(d)
	assert.Equal(t, viaDistance, viaAngle)
}

func TestDistanceFromArea(t *testing.T) {
	s := newTestSolver()

	assert.InDelta(t, 25.0, s.DistanceFromArea(4), 1e-12)
	assert.InDelta(t, 5.0, s.DistanceFromArea(100), 1e-12)
	assert.Equal(t, math.MaxFloat64, s.DistanceFromArea(0))
	assert.Equal(t, math.MaxFloat64, s.DistanceFromArea(-1))
	assert.Equal(t, math.MaxFloat64, s.DistanceFromArea(math.NaN()))

	s.SetAreaConstant(10)
	assert.InDelta(t, 1.0, s.DistanceFromArea(100), 1e-12)

	sol := s.SolveArea(0)
	assert.False(t, sol.Reachable)
	assert.Equal(t, Unreachable, sol.LaunchVelocity)
}

func TestOptimalAngle(t *testing.T) {
	s := newTestSolver()

	// Reverse the 45° reference shot: the 45° trajectory is one of the two
	// roots, and the lower root must not exceed it.
	v := s.LaunchVelocity(2.0)
	angle := s.OptimalAngle(2.0, v)
	require.NotEqual(t, Unreachable, angle)
	assert.LessOrEqual(t, angle, 45.0+1e-9)
	assert.True(t, s.IsTargetReachable(2.0, v))

	// Plugging the returned angle back in must reproduce the speed.
	cfg := s.Config()
	cfg.LaunchAngleDeg = angle
	s.SetConfig(cfg)
	assert.InDelta(t, v, s.LaunchVelocity(2.0), 1e-6)
}

func TestOptimalAngle_NegativeDiscriminant(t *testing.T) {
	s := newTestSolver()

	// v⁴ − g(g·d² + 2hv²) at v = 2, d = 3 is negative
	assert.Equal(t, Unreachable, s.OptimalAngle(3, 2))
	assert.False(t, s.IsTargetReachable(3, 2))
	assert.Equal(t, Unreachable, s.OptimalAngle(0, 5))
	assert.Equal(t, Unreachable, s.OptimalAngle(math.Inf(1), 5))
}

func TestRPMVelocityRoundTrip(t *testing.T) {
	for _, v := range []float64{0.01, 1, 5.97, 12.5, 250} {
		for _, d := range []float64{0.05, 0.1, 0.096, 1} {
			got := RPMToVelocity(VelocityToRPM(v, d), d)
			assert.InEpsilon(t, v, got, 1e-12, "v=%v d=%v", v, d)
		}
	}
	// 60 RPM on a wheel of circumference 1 m moves 1 m/s
	assert.InDelta(t, 1.0, RPMToVelocity(60, 1/math.Pi), 1e-12)
}

func TestTimeOfFlight(t *testing.T) {
	s := newTestSolver()
	assert.InDelta(t, 2/(4*math.Cos(math.Pi/4)), s.TimeOfFlight(2, 4), 1e-12)
	assert.Equal(t, Unreachable, s.TimeOfFlight(2, 0))
	assert.Equal(t, Unreachable, s.TimeOfFlight(2, -1))
}

func TestSolve_DistanceSources(t *testing.T) {
	s := newTestSolver()
	off := AngularOffset{Tx: 5, Ty: 10, Area: 4}

	assert.Equal(t, s.SolveVerticalAngle(10), s.Solve(off, DistanceFromTy))
	assert.Equal(t, s.SolveVerticalAngle(5), s.Solve(off, DistanceFromTx))
	assert.Equal(t, s.SolveArea(4), s.Solve(off, DistanceFromArea))
}

func TestSolveDistance_NoFlywheel(t *testing.T) {
	s := newTestSolver()
	s.SetFlywheelDiameter(0)
	assert.False(t, s.SolveDistance(2).Reachable)
}
