package targeting

import "math"

// PowerMotor is a flywheel motor driven open-loop with encoder feedback.
type PowerMotor interface {
	SetPower(p float64)
	CurrentRPM() float64
}

// FlywheelController closes a velocity loop around a PowerMotor so it can be
// used wherever a LauncherVelocity is expected.
type FlywheelController struct {
	cfg   FlywheelConfig
	motor PowerMotor

	// State
	target      float64
	running     bool
	integral    float64
	prevError   float64
	initialized bool
	power       float64

	// Last terms, for diagnostics
	lastFF, lastP, lastI, lastD float64
}

// NewFlywheelController creates a stopped flywheel loop
func NewFlywheelController(cfg FlywheelConfig, motor PowerMotor) *FlywheelController {
	if cfg.MaxPower <= 0 || cfg.MaxPower > 1 {
		cfg.MaxPower = 1
	}
	return &FlywheelController{cfg: cfg, motor: motor}
}

// SetTargetRPM latches a new setpoint. Negative requests are clamped to 0.
func (fc *FlywheelController) SetTargetRPM(rpm float64) {
	if math.IsNaN(rpm) || rpm < 0 {
		rpm = 0
	}
	fc.target = rpm
	fc.running = true
}

// TargetRPM returns the latched setpoint
func (fc *FlywheelController) TargetRPM() float64 {
	return fc.target
}

// CurrentRPM returns the measured flywheel speed
func (fc *FlywheelController) CurrentRPM() float64 {
	return fc.motor.CurrentRPM()
}

// Stop cuts motor power immediately and clears the loop state
func (fc *FlywheelController) Stop() {
	fc.running = false
	fc.target = 0
	fc.Reset()
	fc.power = 0
	fc.motor.SetPower(0)
}

// Reset clears the PID state
func (fc *FlywheelController) Reset() {
	fc.integral = 0.0
	fc.prevError = 0.0
	fc.initialized = false
	fc.lastFF, fc.lastP, fc.lastI, fc.lastD = 0, 0, 0, 0
}

// Update runs one step of the loop and commands the motor.
//
// Returns: motor power in [0, MaxPower]
func (fc *FlywheelController) Update(dt float64) float64 {
	if !fc.running {
		fc.power = 0
		fc.motor.SetPower(0)
		return 0
	}

	current := fc.motor.CurrentRPM()
	err := fc.target - current

	// Initialize on first call
	if !fc.initialized {
		fc.prevError = err
		fc.initialized = true
	}

	ff := fc.cfg.Kff * fc.target
	p := fc.cfg.Kp * err

	// Integral term with anti-windup
	fc.integral += err * dt
	fc.integral = ClampFloat(fc.integral, -fc.cfg.IntegralLimit, fc.cfg.IntegralLimit)
	i := fc.cfg.Ki * fc.integral

	// Derivative on error
	var d float64
	if dt > 0 {
		d = fc.cfg.Kd * (err - fc.prevError) / dt
	}

	power := ff + p + i + d

	// Saturate; back-calculate the integral so it does not keep winding
	if power > fc.cfg.MaxPower || power < 0 {
		power = ClampFloat(power, 0, fc.cfg.MaxPower)
		if fc.cfg.Ki > 0 {
			fc.integral = (power - ff - p - d) / fc.cfg.Ki
			fc.integral = ClampFloat(fc.integral, -fc.cfg.IntegralLimit, fc.cfg.IntegralLimit)
		}
	}

	fc.prevError = err
	fc.power = power
	fc.lastFF, fc.lastP, fc.lastI, fc.lastD = ff, p, fc.cfg.Ki*fc.integral, d
	fc.motor.SetPower(power)
	return power
}

// FlywheelDiagnostics contains loop internals for monitoring
type FlywheelDiagnostics struct {
	TargetRPM  float64
	CurrentRPM float64
	Error      float64
	Integral   float64
	FF         float64
	P          float64
	I          float64
	D          float64
	Power      float64
}

// GetDiagnostics returns current loop state for logging/debugging
func (fc *FlywheelController) GetDiagnostics() FlywheelDiagnostics {
	return FlywheelDiagnostics{
		TargetRPM:  fc.target,
		CurrentRPM: fc.motor.CurrentRPM(),
		Error:      fc.prevError,
		Integral:   fc.integral,
		FF:         fc.lastFF,
		P:          fc.lastP,
		I:          fc.lastI,
		D:          fc.lastD,
		Power:      fc.power,
	}
}
