package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
	"gonum.org/v1/gonum/spatial/r3"

	"turret-aim-core/targeting"
	"turret-aim-core/utils"
)

// visionFrame is one line of the sensor's JSON output.
type visionFrame struct {
	Valid     bool             `json:"valid"`
	Fiducials []visionFiducial `json:"fiducials"`
	Botpose   []float64        `json:"botpose,omitempty"` // x, y, z, roll, pitch, yaw
}

type visionFiducial struct {
	ID int     `json:"id"`
	Tx float64 `json:"tx"`
	Ty float64 `json:"ty"`
	Ta float64 `json:"ta"`
}

type visionSnapshot struct {
	valid   bool
	obs     []targeting.FiducialObservation
	pose    targeting.Pose
	hasPose bool
}

func parseVisionLine(line []byte) (visionSnapshot, error) {
	var f visionFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return visionSnapshot{}, fmt.Errorf("vision line: %w", err)
	}

	snap := visionSnapshot{valid: f.Valid}
	for _, fid := range f.Fiducials {
		snap.obs = append(snap.obs, targeting.FiducialObservation{
			ID:     fid.ID,
			Offset: targeting.AngularOffset{Tx: fid.Tx, Ty: fid.Ty, Area: fid.Ta},
		})
	}
	if len(f.Botpose) >= 6 {
		snap.pose = targeting.Pose{
			Position: r3.Vec{X: f.Botpose[0], Y: f.Botpose[1], Z: f.Botpose[2]},
			Roll:     f.Botpose[3],
			Pitch:    f.Botpose[4],
			Yaw:      f.Botpose[5],
		}
		snap.hasPose = true
	}
	return snap, nil
}

// SerialVision reads the vision sensor's JSON-lines stream. Monitor runs on
// its own goroutine; Update, HasTarget and Observations belong to the cycle
// goroutine and only see what Update last pulled off the channel.
type SerialVision struct {
	name      string
	port      io.ReadCloser
	log       *utils.Logger
	updates   chan visionSnapshot
	maxMissed int

	current visionSnapshot
	have    bool
	missed  int
}

// OpenSerialVision opens the sensor's serial port at baud 8N1.
func OpenSerialVision(name, path string, baud, maxMissed int, log *utils.Logger) (*SerialVision, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, &targeting.DeviceError{Kind: "sensor", Name: name, Err: err}
	}
	return NewSerialVision(name, port, maxMissed, log), nil
}

// NewSerialVision wraps an already-open stream.
func NewSerialVision(name string, port io.ReadCloser, maxMissed int, log *utils.Logger) *SerialVision {
	if maxMissed < 0 {
		maxMissed = 0
	}
	return &SerialVision{
		name:      name,
		port:      port,
		log:       log,
		updates:   make(chan visionSnapshot, 1),
		maxMissed: maxMissed,
	}
}

// Monitor reads lines until the port closes or ctx ends. Malformed lines
// are logged and skipped; when the cycle loop is behind, the unread
// snapshot is replaced by the newer one.
func (v *SerialVision) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(v.port)
	for scan.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scan.Bytes()
		if len(line) == 0 {
			continue
		}
		snap, err := parseVisionLine(line)
		if err != nil {
			v.log.Warn("%s: %v", v.name, err)
			continue
		}
		v.log.Trace("%s: valid=%v fiducials=%d", v.name, snap.valid, len(snap.obs))

		select {
		case v.updates <- snap:
		default:
			select {
			case <-v.updates:
			default:
			}
			select {
			case v.updates <- snap:
			default:
			}
		}
	}
	if err := scan.Err(); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", v.name, err)
	}
	return nil
}

// Update takes the newest snapshot. After maxMissed cycles without one the
// previous snapshot is considered stale and dropped.
func (v *SerialVision) Update() {
	select {
	case snap := <-v.updates:
		v.current = snap
		v.have = true
		v.missed = 0
	default:
		v.missed++
		if v.missed > v.maxMissed {
			v.current = visionSnapshot{}
			v.have = false
		}
	}
}

func (v *SerialVision) HasTarget() bool {
	return v.have && v.current.valid && len(v.current.obs) > 0
}

func (v *SerialVision) Observations() []targeting.FiducialObservation {
	if !v.HasTarget() {
		return nil
	}
	return v.current.obs
}

func (v *SerialVision) RobotPose() (targeting.Pose, bool) {
	if !v.have || !v.current.valid || !v.current.hasPose {
		return targeting.Pose{}, false
	}
	return v.current.pose, true
}

func (v *SerialVision) Close() error {
	return v.port.Close()
}
