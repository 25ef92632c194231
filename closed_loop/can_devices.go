package main

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"go.einride.tech/can"

	"turret-aim-core/targeting"
	"turret-aim-core/utils"
)

// commandFrames accumulates the latest value of every transmitted signal so
// that one frame per cycle carries all of a frame's signals.
type commandFrames struct {
	cmap   *utils.CANMap
	values map[string]map[string]float64 // frame -> signal -> value
}

func newCommandFrames(cmap *utils.CANMap) *commandFrames {
	return &commandFrames{cmap: cmap, values: map[string]map[string]float64{}}
}

// resolve looks up a transmit signal, reporting a DeviceError for kind when
// the name is not in the map.
func (c *commandFrames) resolve(kind, signal string) (string, error) {
	fd, _, err := c.cmap.SignalByName(signal)
	if err != nil {
		return "", &targeting.DeviceError{Kind: kind, Name: signal, Err: err}
	}
	if fd.Direction != "tx" {
		return "", &targeting.DeviceError{Kind: kind, Name: signal,
			Err: fmt.Errorf("signal is in receive frame %s", fd.Name)}
	}
	return fd.Name, nil
}

func (c *commandFrames) set(frame, signal string, v float64) {
	sigs, ok := c.values[frame]
	if !ok {
		sigs = map[string]float64{}
		c.values[frame] = sigs
	}
	sigs[signal] = v
}

// encode returns one frame per touched frame name, ordered by name.
func (c *commandFrames) encode() ([]can.Frame, error) {
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]can.Frame, 0, len(names))
	for _, name := range names {
		f, err := c.cmap.EncodeEinrideFrame(name, c.values[name])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

type servoSignal struct {
	frame  string
	signal string
}

// CANTurret drives one or two continuous-rotation servos with the same
// power. Gearing that reverses the platform is handled by wrapping it with
// targeting.Inverted.
type CANTurret struct {
	frames *commandFrames
	servos []servoSignal
	power  float64
}

// NewCANTurret resolves every servo name against the CAN map.
func NewCANTurret(frames *commandFrames, names []string) (*CANTurret, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("turret needs at least one servo")
	}

	t := &CANTurret{frames: frames}
	for _, name := range names {
		frame, err := frames.resolve("servo", name)
		if err != nil {
			return nil, err
		}
		t.servos = append(t.servos, servoSignal{frame: frame, signal: name})
	}
	t.SetPower(0)
	return t, nil
}

func (t *CANTurret) SetPower(p float64) {
	t.power = targeting.ClampPower(p)
	for _, s := range t.servos {
		t.frames.set(s.frame, s.signal, t.power)
	}
}

func (t *CANTurret) CurrentPower() float64 {
	return t.power
}

// CANLauncher is the flywheel motor controller on the bus. In velocity mode
// the controller closes the loop itself on <motor>_target_tps; in power mode
// it only forwards <motor>_power. Measured speed arrives in <motor>_measured_tps.
type CANLauncher struct {
	frames      *commandFrames
	ticksPerRev float64

	targetFrame, targetSignal string
	powerFrame, powerSignal   string
	measuredSignal            string

	mu        sync.Mutex
	targetRPM float64
	power     float64
	measured  float64 // ticks per second
}

// NewCANLauncher resolves the launcher motor's signals.
func NewCANLauncher(frames *commandFrames, motor string, ticksPerRev float64) (*CANLauncher, error) {
	if ticksPerRev <= 0 {
		return nil, fmt.Errorf("launcher %s: invalid ticks per rev %f", motor, ticksPerRev)
	}

	l := &CANLauncher{
		frames:         frames,
		ticksPerRev:    ticksPerRev,
		targetSignal:   motor + "_target_tps",
		powerSignal:    motor + "_power",
		measuredSignal: motor + "_measured_tps",
	}

	var err error
	if l.targetFrame, err = frames.resolve("motor", l.targetSignal); err != nil {
		return nil, err
	}
	if l.powerFrame, err = frames.resolve("motor", l.powerSignal); err != nil {
		return nil, err
	}
	fd, _, err := frames.cmap.SignalByName(l.measuredSignal)
	if err != nil {
		return nil, &targeting.DeviceError{Kind: "motor", Name: l.measuredSignal, Err: err}
	}
	if fd.Direction != "rx" {
		return nil, &targeting.DeviceError{Kind: "motor", Name: l.measuredSignal,
			Err: fmt.Errorf("signal is in transmit frame %s", fd.Name)}
	}

	l.Stop()
	return l, nil
}

// SetTargetRPM commands closed-loop velocity on the motor controller.
func (l *CANLauncher) SetTargetRPM(rpm float64) {
	if math.IsNaN(rpm) || rpm < 0 {
		rpm = 0
	}
	l.mu.Lock()
	l.targetRPM = rpm
	l.power = 0
	l.mu.Unlock()

	l.frames.set(l.targetFrame, l.targetSignal, l.RPMToTicksPerSecond(rpm))
	l.frames.set(l.powerFrame, l.powerSignal, 0)
}

// SetPower drives the motor open loop and clears the velocity setpoint.
func (l *CANLauncher) SetPower(p float64) {
	p = targeting.ClampPower(p)
	l.mu.Lock()
	l.targetRPM = 0
	l.power = p
	l.mu.Unlock()

	l.frames.set(l.targetFrame, l.targetSignal, 0)
	l.frames.set(l.powerFrame, l.powerSignal, p)
}

// Stop cuts motor output.
func (l *CANLauncher) Stop() {
	l.SetPower(0)
}

// TargetRPM returns the last velocity setpoint
func (l *CANLauncher) TargetRPM() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.targetRPM
}

// CurrentRPM returns the last measured speed
func (l *CANLauncher) CurrentRPM() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.TicksPerSecondToRPM(l.measured)
}

// ApplyFeedback takes decoded launcher state signals. Frames that do not
// carry the measured speed are ignored.
func (l *CANLauncher) ApplyFeedback(values map[string]float64) bool {
	tps, ok := values[l.measuredSignal]
	if !ok {
		return false
	}
	l.mu.Lock()
	l.measured = tps
	l.mu.Unlock()
	return true
}

func (l *CANLauncher) RPMToTicksPerSecond(rpm float64) float64 {
	return rpm * l.ticksPerRev / 60.0
}

func (l *CANLauncher) TicksPerSecondToRPM(tps float64) float64 {
	return tps * 60.0 / l.ticksPerRev
}
