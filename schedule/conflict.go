// Package schedule detects room and teacher double-bookings between the weekly
// time slots of classes.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"schoolhub-server-go/models"
)

// Kind classifies a conflict
type Kind string

const (
	// KindRoom: two classes use the same room at overlapping times
	KindRoom Kind = "room"
	// KindTeacher: one teacher is booked in two classes at overlapping times
	KindTeacher Kind = "teacher"
	// KindInternal: two slots of the same class overlap
	KindInternal Kind = "internal"
)

// Conflict describes one clashing pair of slots
type Conflict struct {
	Kind           Kind                `json:"kind"`
	ClassID        string              `json:"classId"`
	ClassName      string              `json:"className"`
	OtherClassID   string              `json:"otherClassId"`
	OtherClassName string              `json:"otherClassName"`
	Day            models.Weekday      `json:"day"`
	Room           string              `json:"room,omitempty"`
	TeacherID      string              `json:"teacherId,omitempty"`
	Slot           models.ScheduleSlot `json:"slot"`
	OtherSlot      models.ScheduleSlot `json:"otherSlot"`
}

func (c Conflict) String() string {
	switch c.Kind {
	case KindTeacher:
		return fmt.Sprintf("teacher %s is booked for %s (%s %s-%s) and %s (%s-%s)",
			c.TeacherID, c.ClassName, c.Day, c.Slot.Start, c.Slot.End, c.OtherClassName, c.OtherSlot.Start, c.OtherSlot.End)
	case KindInternal:
		return fmt.Sprintf("%s has overlapping slots on %s: %s-%s and %s-%s",
			c.ClassName, c.Day, c.Slot.Start, c.Slot.End, c.OtherSlot.Start, c.OtherSlot.End)
	default:
		return fmt.Sprintf("room %s on %s: %s (%s-%s) overlaps %s (%s-%s)",
			c.Room, c.Day, c.ClassName, c.Slot.Start, c.Slot.End, c.OtherClassName, c.OtherSlot.Start, c.OtherSlot.End)
	}
}

// interval is a parsed slot: [start, end) in minutes, with the effective room
type interval struct {
	slot       models.ScheduleSlot
	day        models.Weekday
	room       string // normalized for comparison
	start, end int
}

// NormalizeRoom trims and lowercases a room name for comparison
func NormalizeRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}

// EffectiveSlots returns the class schedule with each empty slot room replaced by the class room
func EffectiveSlots(class models.Clazz) []models.ScheduleSlot {
	return lo.Map(class.Schedule, func(slot models.ScheduleSlot, _ int) models.ScheduleSlot {
		if strings.TrimSpace(slot.Room) == "" {
			slot.Room = class.Room
		}
		slot.Room = strings.TrimSpace(slot.Room)
		return slot
	})
}

// ValidateSlot checks that a slot has a known day, a room, and start < end
func ValidateSlot(slot models.ScheduleSlot) error {
	if !slot.Day.Valid() {
		return fmt.Errorf("unknown day %q", slot.Day)
	}
	if strings.TrimSpace(slot.Room) == "" {
		return fmt.Errorf("slot %s %s-%s has no room", slot.Day, slot.Start, slot.End)
	}
	start, err := ParseClock(slot.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(slot.End)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("slot %s %s-%s ends before it starts", slot.Day, slot.Start, slot.End)
	}
	return nil
}

// Validate checks every effective slot of a class
func Validate(class models.Clazz) error {
	for i, slot := range EffectiveSlots(class) {
		if err := ValidateSlot(slot); err != nil {
			return fmt.Errorf("schedule[%d]: %w", i, err)
		}
	}
	return nil
}

func intervals(class models.Clazz) []interval {
	out := make([]interval, 0, len(class.Schedule))
	for _, slot := range EffectiveSlots(class) {
		start, err1 := ParseClock(slot.Start)
		end, err2 := ParseClock(slot.End)
		if err1 != nil || err2 != nil || start >= end {
			// invalid slots are reported by Validate, never as conflicts
			continue
		}
		out = append(out, interval{slot: slot, day: slot.Day, room: NormalizeRoom(slot.Room), start: start, end: end})
	}
	return out
}

func timesOverlap(a, b interval) bool {
	return a.day == b.day && a.start < b.end && b.start < a.end
}

// Overlaps reports whether two slots share a room and day and their half-open
// time ranges intersect. Slots that touch end to start do not overlap.
func Overlaps(a, b models.ScheduleSlot) bool {
	ia := intervals(models.Clazz{Schedule: []models.ScheduleSlot{a}})
	ib := intervals(models.Clazz{Schedule: []models.ScheduleSlot{b}})
	if len(ia) == 0 || len(ib) == 0 {
		return false
	}
	return ia[0].room != "" && ia[0].room == ib[0].room && timesOverlap(ia[0], ib[0])
}

// pairConflicts compares every slot of a against every slot of b
func pairConflicts(a, b models.Clazz) []Conflict {
	var out []Conflict
	sameTeacher := strings.TrimSpace(a.TeacherID) != "" && a.TeacherID == b.TeacherID
	for _, x := range intervals(a) {
		for _, y := range intervals(b) {
			if !timesOverlap(x, y) {
				continue
			}
			base := Conflict{
				ClassID: a.ID, ClassName: a.Name,
				OtherClassID: b.ID, OtherClassName: b.Name,
				Day: x.day, Slot: x.slot, OtherSlot: y.slot,
			}
			if x.room != "" && x.room == y.room {
				c := base
				c.Kind = KindRoom
				c.Room = x.slot.Room
				out = append(out, c)
			}
			if sameTeacher {
				c := base
				c.Kind = KindTeacher
				c.TeacherID = a.TeacherID
				out = append(out, c)
			}
		}
	}
	return out
}

// internalConflicts reports overlapping slots within one class
func internalConflicts(class models.Clazz) []Conflict {
	var out []Conflict
	ivs := intervals(class)
	for i := 0; i < len(ivs); i++ {
		for j := i + 1; j < len(ivs); j++ {
			if !timesOverlap(ivs[i], ivs[j]) {
				continue
			}
			out = append(out, Conflict{
				Kind:    KindInternal,
				ClassID: class.ID, ClassName: class.Name,
				OtherClassID: class.ID, OtherClassName: class.Name,
				Day: ivs[i].day, Room: ivs[i].slot.Room,
				Slot: ivs[i].slot, OtherSlot: ivs[j].slot,
			})
		}
	}
	return out
}

// Check returns the conflicts the candidate class would introduce against others.
// A class in others with the candidate's ID is the stored version of the
// candidate and is skipped.
func Check(candidate models.Clazz, others []models.Clazz) []Conflict {
	out := append([]Conflict{}, internalConflicts(candidate)...)
	for _, other := range others {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		out = append(out, pairConflicts(candidate, other)...)
	}
	sortConflicts(out)
	return out
}

// DetectAll returns every conflict between the given classes, each pair once
func DetectAll(classes []models.Clazz) []Conflict {
	out := []Conflict{}
	for i := range classes {
		out = append(out, internalConflicts(classes[i])...)
		for j := i + 1; j < len(classes); j++ {
			out = append(out, pairConflicts(classes[i], classes[j])...)
		}
	}
	sortConflicts(out)
	return out
}

func sortConflicts(cs []Conflict) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Day.Index() != b.Day.Index() {
			return a.Day.Index() < b.Day.Index()
		}
		if sa, sb := startMinutes(a.Slot), startMinutes(b.Slot); sa != sb {
			return sa < sb
		}
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.OtherClassID != b.OtherClassID {
			return a.OtherClassID < b.OtherClassID
		}
		return a.Kind < b.Kind
	})
}

func startMinutes(slot models.ScheduleSlot) int {
	m, _ := ParseClock(slot.Start)
	return m
}
