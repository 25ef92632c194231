package utils

import (
	"fmt"
	"sort"
)

type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string // "tx" or "rx", from this node's point of view
	CycleMS   int
	Signals   []SignalDef
}

// Signal returns the named signal of this frame.
func (fd *FrameDef) Signal(name string) (*SignalDef, bool) {
	for i := range fd.Signals {
		if fd.Signals[i].Name == name {
			return &fd.Signals[i], true
		}
	}
	return nil, false
}

type CANMap struct {
	ByID     map[uint32]*FrameDef
	ByName   map[string]*FrameDef
	BySignal map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SignalByName finds a signal anywhere in the map. Signal names are unique
// per map; device adapters use them as hardware names.
func (m *CANMap) SignalByName(name string) (*FrameDef, *SignalDef, error) {
	fd, ok := m.BySignal[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown signal %q", name)
	}
	sd, _ := fd.Signal(name)
	return fd, sd, nil
}
