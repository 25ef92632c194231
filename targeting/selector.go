package targeting

import "sort"

// TargetGroup is a named set of fiducial ids treated as equivalent targets.
type TargetGroup struct {
	Name    string
	members map[int]struct{}
}

// NewTargetGroup builds a group from its member ids.
func NewTargetGroup(name string, ids ...int) TargetGroup {
	members := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}
	return TargetGroup{Name: name, members: members}
}

// Contains reports whether id belongs to the group.
func (g TargetGroup) Contains(id int) bool {
	_, ok := g.members[id]
	return ok
}

// IDs returns the member ids in ascending order.
func (g TargetGroup) IDs() []int {
	out := make([]int, 0, len(g.members))
	for id := range g.members {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Basket marker ids for the 2025-26 field.
var (
	RedBasket  = NewTargetGroup("red", 11, 12, 13)
	BlueBasket = NewTargetGroup("blue", 14, 15, 16)
)

// DefaultTargetGroups returns the built-in groups keyed by name.
func DefaultTargetGroups() map[string]TargetGroup {
	return map[string]TargetGroup{
		RedBasket.Name:  RedBasket,
		BlueBasket.Name: BlueBasket,
	}
}

// SelectTarget returns the member of g with the largest apparent area.
// Exact ties keep the observation seen first.
func SelectTarget(obs []FiducialObservation, g TargetGroup) (FiducialObservation, bool) {
	var (
		best  FiducialObservation
		found bool
	)
	for _, o := range obs {
		if !g.Contains(o.ID) {
			continue
		}
		if !found || o.Offset.Area > best.Offset.Area {
			best = o
			found = true
		}
	}
	return best, found
}

// FindByID returns the first observation of a specific marker.
func FindByID(obs []FiducialObservation, id int) (FiducialObservation, bool) {
	for _, o := range obs {
		if o.ID == id {
			return o, true
		}
	}
	return FiducialObservation{}, false
}
