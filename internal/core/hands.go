package core

import (
	"sort"
	"time"

	"github.com/e7canasta/orion-depth/internal/emitter"
	"github.com/e7canasta/orion-depth/modules/gesturelatch"
	"github.com/e7canasta/orion-depth/modules/interaction"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

// handsFrame is one joined pair: latched hand state plus the skeletons that
// arrived within the join tolerance.
type handsFrame struct {
	At        time.Time
	Users     []interaction.UserInfo
	Skeletons []sensor.Skeleton
}

func joinHands(users []interaction.UserInfo, skeletons []sensor.Skeleton) handsFrame {
	return handsFrame{At: time.Now(), Users: users, Skeletons: skeletons}
}

// snapshot converts a joined frame into its wire message. Empty user slots
// are skipped; HeadY is filled from the skeleton with the same tracking id.
func snapshot(instanceID string, f handsFrame) emitter.HandsSnapshot {
	heads := make(map[int]float32, len(f.Skeletons))
	for i := range f.Skeletons {
		sk := &f.Skeletons[i]
		if sk.TrackingState == sensor.SkeletonTracked {
			heads[sk.TrackingID] = sk.Joint(sensor.Head).Position.Y
		}
	}

	users := make([]emitter.User, 0, len(f.Users))
	for _, u := range f.Users {
		if u.SkeletonTrackingID == 0 {
			continue
		}
		hands := make([]emitter.Hand, 0, len(u.HandPointers))
		for _, hp := range u.HandPointers {
			if hp.HandType == interaction.HandNone {
				continue
			}
			hands = append(hands, emitter.Hand{
				Hand:    hp.HandType.String(),
				Event:   hp.HandEventType.String(),
				Gripped: hp.HandEventType == interaction.HandEventGrip,
				X:       hp.X,
				Y:       hp.Y,
			})
		}
		users = append(users, emitter.User{
			TrackingID: u.SkeletonTrackingID,
			HeadY:      heads[u.SkeletonTrackingID],
			Hands:      hands,
		})
	}

	return emitter.HandsSnapshot{
		InstanceID: instanceID,
		Timestamp:  f.At.UnixMilli(),
		Users:      users,
	}
}

// gripTracker diffs consecutive latched states into GripChange messages.
// A gripped hand whose user disappears is reported released.
type gripTracker struct {
	gripped map[gesturelatch.Key]bool
}

func newGripTracker() *gripTracker {
	return &gripTracker{gripped: make(map[gesturelatch.Key]bool)}
}

func (g *gripTracker) update(instanceID string, f handsFrame) []emitter.GripChange {
	ts := f.At.UnixMilli()
	change := func(k gesturelatch.Key, gripped bool) emitter.GripChange {
		return emitter.GripChange{
			InstanceID: instanceID,
			Timestamp:  ts,
			TrackingID: k.TrackingID,
			Hand:       k.Hand.String(),
			Gripped:    gripped,
		}
	}

	var changes []emitter.GripChange
	seen := make(map[gesturelatch.Key]bool)

	for _, u := range f.Users {
		if u.SkeletonTrackingID == 0 {
			continue
		}
		for _, hp := range u.HandPointers {
			if hp.HandType == interaction.HandNone {
				continue
			}
			k := gesturelatch.Key{TrackingID: u.SkeletonTrackingID, Hand: hp.HandType}
			seen[k] = true

			now := hp.HandEventType == interaction.HandEventGrip
			if now == g.gripped[k] {
				continue
			}
			changes = append(changes, change(k, now))
			if now {
				g.gripped[k] = true
			} else {
				delete(g.gripped, k)
			}
		}
	}

	var vanished []gesturelatch.Key
	for k := range g.gripped {
		if !seen[k] {
			vanished = append(vanished, k)
		}
	}
	sort.Slice(vanished, func(i, j int) bool {
		if vanished[i].TrackingID != vanished[j].TrackingID {
			return vanished[i].TrackingID < vanished[j].TrackingID
		}
		return vanished[i].Hand < vanished[j].Hand
	})
	for _, k := range vanished {
		delete(g.gripped, k)
		changes = append(changes, change(k, false))
	}

	return changes
}
