package gesturelatch

import (
	"testing"

	"github.com/e7canasta/orion-depth/modules/interaction"
)

func user(id int, ev interaction.HandEventType) interaction.UserInfo {
	return interaction.UserInfo{
		SkeletonTrackingID: id,
		HandPointers:       []interaction.HandPointer{{HandType: interaction.HandLeft, HandEventType: ev}},
	}
}

// TestEvictForgetsReleasedUsers verifies absence counts do not outlive the
// latches they were kept for.
func TestEvictForgetsReleasedUsers(t *testing.T) {
	table := NewTable()
	table.claim()

	for id := 1; id <= 50; id++ {
		table.Apply([]interaction.UserInfo{user(id, interaction.HandEventGrip)}, 3)
		table.Apply(nil, 3) // id missing once
		table.Apply([]interaction.UserInfo{user(id, interaction.HandEventGripRelease)}, 3)
	}

	if table.Len() != 0 {
		t.Errorf("latched = %v, want none", table.Keys())
	}
	if n := table.tracked(); n != 0 {
		t.Errorf("absence entries = %d, want 0", n)
	}

	// a latch released while its user is still missing is forgotten too
	table.Apply([]interaction.UserInfo{user(7, interaction.HandEventGrip)}, 3)
	table.Apply(nil, 3)
	table.Release(Key{TrackingID: 7, Hand: interaction.HandLeft})
	table.Apply(nil, 3)
	if n := table.tracked(); n != 0 {
		t.Errorf("absence entries after manual release = %d, want 0", n)
	}
	t.Logf("✅ absence map empty after 50 grip/release cycles")
}
