package targeting

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSelectTarget(t *testing.T) {
	tests := []struct {
		name   string
		obs    []FiducialObservation
		group  TargetGroup
		want   FiducialObservation
		wantOK bool
	}{
		{
			name:  "empty snapshot",
			group: RedBasket,
		},
		{
			name:  "no member present",
			obs:   []FiducialObservation{obs(14, 1, 1, 3), obs(20, 0, 0, 9)},
			group: RedBasket,
		},
		{
			name:   "single member",
			obs:    []FiducialObservation{obs(14, 1, 1, 3), obs(12, -4, 2, 1.5)},
			group:  RedBasket,
			want:   obs(12, -4, 2, 1.5),
			wantOK: true,
		},
		{
			name:   "largest area wins",
			obs:    []FiducialObservation{obs(11, 1, 1, 0.8), obs(13, 2, 2, 2.4), obs(12, 3, 3, 1.1)},
			group:  RedBasket,
			want:   obs(13, 2, 2, 2.4),
			wantOK: true,
		},
		{
			name:   "non-member with larger area ignored",
			obs:    []FiducialObservation{obs(15, 1, 1, 0.5), obs(11, 0, 0, 50)},
			group:  BlueBasket,
			want:   obs(15, 1, 1, 0.5),
			wantOK: true,
		},
		{
			name:   "tie keeps first seen",
			obs:    []FiducialObservation{obs(16, -7, 1, 2), obs(14, 7, 1, 2)},
			group:  BlueBasket,
			want:   obs(16, -7, 1, 2),
			wantOK: true,
		},
		{
			name:   "zero area member still selected",
			obs:    []FiducialObservation{obs(11, 4, 0, 0)},
			group:  RedBasket,
			want:   obs(11, 4, 0, 0),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectTarget(tt.obs, tt.group)
			assert.Equal(t, tt.wantOK, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SelectTarget() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTargetGroup(t *testing.T) {
	g := NewTargetGroup("custom", 7, 3, 7, 5)
	assert.Equal(t, []int{3, 5, 7}, g.IDs())
	assert.True(t, g.Contains(5))
	assert.False(t, g.Contains(4))

	var zero TargetGroup
	assert.False(t, zero.Contains(0))
	assert.Empty(t, zero.IDs())

	groups := DefaultTargetGroups()
	assert.Equal(t, []int{11, 12, 13}, groups["red"].IDs())
	assert.Equal(t, []int{14, 15, 16}, groups["blue"].IDs())
}

func TestFindByID(t *testing.T) {
	snapshot := []FiducialObservation{obs(3, 0, 0, 1), obs(9, 1, 1, 1)}

	got, ok := FindByID(snapshot, 9)
	assert.True(t, ok)
	assert.Equal(t, 9, got.ID)

	_, ok = FindByID(snapshot, 4)
	assert.False(t, ok)
}
