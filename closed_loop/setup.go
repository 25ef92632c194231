package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"turret-aim-core/targeting"
)

// Setup is the complete description of one robot configuration: which
// devices to open, how the controllers are tuned and, in sim mode, what the
// simulated world looks like.
type Setup struct {
	Meta         SetupMeta                  `json:"meta"`
	Timing       SetupTiming                `json:"timing"`
	Devices      DeviceNames                `json:"devices"`
	Aim          targeting.AimConfig        `json:"aim"`
	Kinematics   targeting.KinematicsConfig `json:"kinematics"`
	Coordinator  CoordinatorSetup           `json:"coordinator"`
	TargetGroups map[string][]int           `json:"target_groups"`
	Launcher     LauncherSetup              `json:"launcher"`
	Sim          SimSetup                   `json:"sim"`
}

// SetupMeta contains setup metadata
type SetupMeta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Mode        string `json:"mode"` // "sim" or "can"
}

// SetupTiming defines the cycle timing
type SetupTiming struct {
	CycleMS   int     `json:"cycle_ms"`
	DurationS float64 `json:"duration_s"` // 0 runs until interrupted
	DiagEvery int     `json:"diag_every_cycles"`
}

// DeviceNames names every piece of hardware the binary opens.
type DeviceNames struct {
	TurretServos    []string `json:"turret_servos"`
	TurretInverted  bool     `json:"turret_inverted"`
	LauncherMotor   string   `json:"launcher_motor"`
	VisionName      string   `json:"vision_name"`
	VisionPort      string   `json:"vision_port"`
	VisionBaud      int      `json:"vision_baud"`
	MaxMissedCycles int      `json:"max_missed_cycles"`
	CANInterface    string   `json:"can_interface"`
	CANMap          string   `json:"can_map"`
}

// CoordinatorSetup is the file form of targeting.CoordinatorConfig.
type CoordinatorSetup struct {
	RPMTolerance   float64 `json:"rpm_tolerance"`
	TargetGroup    string  `json:"target_group"`
	DistanceSource string  `json:"distance_source"`
}

// LauncherSetup selects how the flywheel is driven.
type LauncherSetup struct {
	Mode        string                   `json:"mode"` // "velocity" or "power"
	TicksPerRev float64                  `json:"ticks_per_rev"`
	Flywheel    targeting.FlywheelConfig `json:"flywheel"`
}

// SimSetup describes the simulated turret, flywheel and target.
type SimSetup struct {
	TargetID          int     `json:"target_id"`
	TargetBearingDeg  float64 `json:"target_bearing_deg"` // CCW from the initial turret heading
	TargetDistanceM   float64 `json:"target_distance_m"`
	TargetDriftDegS   float64 `json:"target_drift_deg_s"`
	DecoyID           int     `json:"decoy_id"` // 0 disables the decoy
	DecoyOffsetDeg    float64 `json:"decoy_offset_deg"`
	HorizontalFOVDeg  float64 `json:"horizontal_fov_deg"`
	TurretMaxRateDegS float64 `json:"turret_max_rate_deg_s"`
	FlywheelFreeRPM   float64 `json:"flywheel_free_rpm"`
	FlywheelTauS      float64 `json:"flywheel_tau_s"`
}

// DefaultSetup returns the competition robot wiring in sim mode.
func DefaultSetup() Setup {
	groups := map[string][]int{}
	for name, g := range targeting.DefaultTargetGroups() {
		groups[name] = g.IDs()
	}

	return Setup{
		Meta: SetupMeta{Name: "default", Mode: "sim"},
		Timing: SetupTiming{
			CycleMS:   20,
			DiagEvery: 50,
		},
		Devices: DeviceNames{
			TurretServos:    []string{"turretLeft", "turretRight"},
			TurretInverted:  true,
			LauncherMotor:   "shooterMotor",
			VisionName:      "limelight",
			VisionPort:      "/dev/ttyACM0",
			VisionBaud:      115200,
			MaxMissedCycles: 3,
			CANInterface:    "vcan0",
			CANMap:          "config/can/can_map.csv",
		},
		Aim:        targeting.DefaultAimConfig(),
		Kinematics: targeting.DefaultKinematicsConfig(),
		Coordinator: CoordinatorSetup{
			RPMTolerance:   targeting.DefaultCoordinatorConfig().RPMTolerance,
			TargetGroup:    "red",
			DistanceSource: "ty",
		},
		TargetGroups: groups,
		Launcher: LauncherSetup{
			Mode:        "velocity",
			TicksPerRev: 145.1,
			Flywheel:    targeting.DefaultFlywheelConfig(),
		},
		Sim: SimSetup{
			TargetID:          11,
			TargetBearingDeg:  15,
			TargetDistanceM:   2.0,
			DecoyID:           14,
			DecoyOffsetDeg:    -8,
			HorizontalFOVDeg:  54.5,
			TurretMaxRateDegS: 180,
			FlywheelFreeRPM:   6000,
			FlywheelTauS:      0.25,
		},
	}
}

// LoadSetup loads a setup from JSON file. Fields missing from the file keep
// their DefaultSetup values.
func LoadSetup(path string) (Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Setup{}, fmt.Errorf("read file: %w", err)
	}
	return ParseSetup(data)
}

// ParseSetup decodes and validates setup JSON.
func ParseSetup(data []byte) (Setup, error) {
	s := DefaultSetup()
	defaults := s.TargetGroups
	s.TargetGroups = nil
	if err := json.Unmarshal(data, &s); err != nil {
		return Setup{}, fmt.Errorf("unmarshal: %w", err)
	}

	// file groups replace defaults of the same name, whatever their case
	groups, err := normalizeGroups(s.TargetGroups)
	if err != nil {
		return Setup{}, err
	}
	for name, ids := range defaults {
		if _, ok := groups[name]; !ok {
			groups[name] = ids
		}
	}
	s.TargetGroups = groups

	if err := s.Validate(); err != nil {
		return Setup{}, err
	}
	return s, nil
}

// Validate checks the setup for values that would make the loop misbehave.
func (s *Setup) Validate() error {
	s.Meta.Mode = strings.ToLower(strings.TrimSpace(s.Meta.Mode))
	if s.Meta.Mode != "sim" && s.Meta.Mode != "can" {
		return fmt.Errorf("invalid mode %q (want sim or can)", s.Meta.Mode)
	}

	if s.Timing.CycleMS <= 0 {
		return fmt.Errorf("invalid cycle_ms: %d", s.Timing.CycleMS)
	}
	if s.Timing.DurationS < 0 {
		return fmt.Errorf("invalid duration_s: %f", s.Timing.DurationS)
	}
	if s.Timing.DiagEvery <= 0 {
		s.Timing.DiagEvery = 50
	}

	d := s.Devices
	if len(d.TurretServos) == 0 || len(d.TurretServos) > 2 {
		return fmt.Errorf("turret_servos needs 1 or 2 names, got %d", len(d.TurretServos))
	}
	for _, name := range d.TurretServos {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("turret_servos contains an empty name")
		}
	}
	if strings.TrimSpace(d.LauncherMotor) == "" {
		return fmt.Errorf("launcher_motor is required")
	}
	if d.MaxMissedCycles < 0 {
		return fmt.Errorf("invalid max_missed_cycles: %d", d.MaxMissedCycles)
	}
	if s.Meta.Mode == "can" {
		if d.CANInterface == "" || d.CANMap == "" {
			return fmt.Errorf("can mode requires can_interface and can_map")
		}
		if d.VisionPort == "" {
			return fmt.Errorf("can mode requires vision_port")
		}
		if d.VisionBaud <= 0 {
			return fmt.Errorf("invalid vision_baud: %d", d.VisionBaud)
		}
	}

	if s.Aim.ProportionalGain < 0 || s.Aim.MinimumPower < 0 || s.Aim.MinimumPower > 1 {
		return fmt.Errorf("invalid aim tuning: gain=%f minimum_power=%f", s.Aim.ProportionalGain, s.Aim.MinimumPower)
	}
	if s.Aim.TargetToleranceDeg < 0 {
		return fmt.Errorf("invalid target_tolerance_deg: %f", s.Aim.TargetToleranceDeg)
	}
	s.Aim.Period = s.Period()

	if s.Kinematics.FlywheelDiameter <= 0 {
		return fmt.Errorf("invalid flywheel_diameter_m: %f", s.Kinematics.FlywheelDiameter)
	}

	if _, err := targeting.ParseDistanceSource(s.Coordinator.DistanceSource); err != nil {
		return err
	}
	if s.Coordinator.RPMTolerance < 0 {
		return fmt.Errorf("invalid rpm_tolerance: %f", s.Coordinator.RPMTolerance)
	}
	groups, err := normalizeGroups(s.TargetGroups)
	if err != nil {
		return err
	}
	s.TargetGroups = groups
	if _, err := s.TargetGroup(); err != nil {
		return err
	}

	s.Launcher.Mode = strings.ToLower(strings.TrimSpace(s.Launcher.Mode))
	if s.Launcher.Mode != "velocity" && s.Launcher.Mode != "power" {
		return fmt.Errorf("invalid launcher mode %q (want velocity or power)", s.Launcher.Mode)
	}
	if s.Launcher.TicksPerRev <= 0 {
		return fmt.Errorf("invalid ticks_per_rev: %f", s.Launcher.TicksPerRev)
	}

	if s.Meta.Mode == "sim" {
		if s.Sim.TargetDistanceM <= 0 {
			return fmt.Errorf("invalid sim target_distance_m: %f", s.Sim.TargetDistanceM)
		}
		if s.Sim.FlywheelTauS <= 0 || s.Sim.FlywheelFreeRPM <= 0 || s.Sim.TurretMaxRateDegS <= 0 {
			return fmt.Errorf("sim plant constants must be positive")
		}
		if s.Sim.HorizontalFOVDeg <= 0 {
			return fmt.Errorf("invalid horizontal_fov_deg: %f", s.Sim.HorizontalFOVDeg)
		}
	}

	return nil
}

// Period is the cycle period.
func (s Setup) Period() time.Duration {
	return time.Duration(s.Timing.CycleMS) * time.Millisecond
}

// normalizeGroups lowercases group names so lookups are case-insensitive.
func normalizeGroups(in map[string][]int) (map[string][]int, error) {
	out := make(map[string][]int, len(in))
	for name, ids := range in {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("target group %q defined more than once", key)
		}
		out[key] = ids
	}
	return out, nil
}

// TargetGroup resolves coordinator.target_group against target_groups.
func (s Setup) TargetGroup() (targeting.TargetGroup, error) {
	name := strings.ToLower(strings.TrimSpace(s.Coordinator.TargetGroup))
	ids, ok := s.TargetGroups[name]
	if !ok {
		known := make([]string, 0, len(s.TargetGroups))
		for k := range s.TargetGroups {
			known = append(known, k)
		}
		sort.Strings(known)
		return targeting.TargetGroup{}, fmt.Errorf("unknown target group %q (available: %v)", name, known)
	}
	if len(ids) == 0 {
		return targeting.TargetGroup{}, fmt.Errorf("target group %q has no marker ids", name)
	}
	return targeting.NewTargetGroup(name, ids...), nil
}

// CoordinatorConfig converts the file form to the library config.
func (s Setup) CoordinatorConfig() (targeting.CoordinatorConfig, error) {
	src, err := targeting.ParseDistanceSource(s.Coordinator.DistanceSource)
	if err != nil {
		return targeting.CoordinatorConfig{}, err
	}
	return targeting.CoordinatorConfig{
		RPMTolerance:   s.Coordinator.RPMTolerance,
		DistanceSource: src,
	}, nil
}

// AimConfig returns the aim tuning with the cycle period filled in.
func (s Setup) AimConfig() targeting.AimConfig {
	cfg := s.Aim
	cfg.Period = s.Period()
	return cfg
}
