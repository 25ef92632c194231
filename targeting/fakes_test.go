package targeting

// fakeActuator records the last power command.
type fakeActuator struct {
	power float64
	calls int
}

func (a *fakeActuator) SetPower(p float64) {
	a.power = p
	a.calls++
}

func (a *fakeActuator) CurrentPower() float64 { return a.power }

// fakeSensor serves a fixed snapshot and counts refreshes.
type fakeSensor struct {
	obs     []FiducialObservation
	valid   bool
	updates int
	pose    *Pose
}

func (s *fakeSensor) Update()                             { s.updates++ }
func (s *fakeSensor) HasTarget() bool                     { return s.valid && len(s.obs) > 0 }
func (s *fakeSensor) Observations() []FiducialObservation { return s.obs }

type poseSensor struct {
	fakeSensor
}

func (s *poseSensor) RobotPose() (Pose, bool) {
	if s.pose == nil {
		return Pose{}, false
	}
	return *s.pose, true
}

// fakeLauncher reports a configurable measured speed.
type fakeLauncher struct {
	target  float64
	current float64
	stopped bool
	sets    int
}

func (l *fakeLauncher) SetTargetRPM(rpm float64) {
	l.target = rpm
	l.stopped = false
	l.sets++
}

func (l *fakeLauncher) CurrentRPM() float64 { return l.current }

func (l *fakeLauncher) Stop() {
	l.target = 0
	l.stopped = true
}

// fakeMotor is a first-order flywheel: rpm chases power*freeRPM.
type fakeMotor struct {
	power   float64
	rpm     float64
	freeRPM float64
	tau     float64
}

func (m *fakeMotor) SetPower(p float64)  { m.power = p }
func (m *fakeMotor) CurrentRPM() float64 { return m.rpm }

func (m *fakeMotor) step(dt float64) {
	m.rpm += (m.power*m.freeRPM - m.rpm) * dt / m.tau
}

func obs(id int, tx, ty, area float64) FiducialObservation {
	return FiducialObservation{ID: id, Offset: AngularOffset{Tx: tx, Ty: ty, Area: area}}
}
