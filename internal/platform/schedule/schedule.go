// Package schedule computes the next wall-clock batch-publish time from
// a list of daily time-of-day slots.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"
)

// Time conversion constants.
const (
	minutesPerHour = 60
	maxHour        = 23
)

// Static errors for slot validation.
var (
	ErrTimeFormat     = errors.New("time must be HH:MM")
	ErrInvalidHour    = errors.New("invalid hour")
	ErrInvalidMinute  = errors.New("invalid minute")
	ErrHourOutOfRange = errors.New("hour out of range")
)

// SlotScheduler holds an ordered list of daily publish slots in a fixed
// timezone, with a fallback interval when no slots are configured.
type SlotScheduler struct {
	// slots are minutes since local midnight, ascending.
	slots    []int
	fallback time.Duration
	loc      *time.Location
}

// NewSlotScheduler parses and sorts HH:MM slots. An empty timezone
// defaults to UTC.
func NewSlotScheduler(slots []string, fallback time.Duration, timezone string) (*SlotScheduler, error) {
	loc := time.UTC

	if strings.TrimSpace(timezone) != "" {
		parsed, err := time.LoadLocation(strings.TrimSpace(timezone))
		if err != nil {
			return nil, fmt.Errorf("invalid timezone: %w", err)
		}

		loc = parsed
	}

	minutes := make([]int, 0, len(slots))

	for _, slot := range slots {
		m, err := parseTimeHM(slot)
		if err != nil {
			return nil, fmt.Errorf("invalid slot %q: %w", slot, err)
		}

		minutes = append(minutes, m)
	}

	sort.Ints(minutes)

	return &SlotScheduler{slots: minutes, fallback: fallback, loc: loc}, nil
}

// NextSlot returns the first configured slot strictly after the given
// instant: today's next remaining slot, else tomorrow's earliest. With
// no slots configured it returns after+fallback truncated to seconds.
func (s *SlotScheduler) NextSlot(after time.Time) time.Time {
	if len(s.slots) == 0 {
		return after.Add(s.fallback).Truncate(time.Second)
	}

	local := after.In(s.loc)

	for _, minutes := range s.slots {
		candidate := s.slotOnDay(local, minutes)
		if candidate.After(local) {
			return candidate
		}
	}

	tomorrow := local.AddDate(0, 0, 1)

	return s.slotOnDay(tomorrow, s.slots[0])
}

func (s *SlotScheduler) slotOnDay(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/minutesPerHour, minutes%minutesPerHour, 0, 0, s.loc)
}

func parseTimeHM(value string) (int, error) {
	normalized, err := NormalizeTimeHM(value)
	if err != nil {
		return 0, err
	}

	hour, err := strconv.Atoi(normalized[:2])
	if err != nil {
		return 0, ErrInvalidHour
	}

	minute, err := strconv.Atoi(normalized[3:])
	if err != nil {
		return 0, ErrInvalidMinute
	}

	return hour*minutesPerHour + minute, nil
}

// NormalizeTimeHM accepts H:MM or HH:MM and returns HH:MM.
func NormalizeTimeHM(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrTimeFormat
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", ErrTimeFormat
	}

	if len(parts[1]) != 2 {
		return "", ErrTimeFormat
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", ErrInvalidHour
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", ErrInvalidMinute
	}

	if hour > maxHour || hour < 0 {
		return "", ErrHourOutOfRange
	}

	if minute < 0 || minute >= minutesPerHour {
		return "", ErrInvalidMinute
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
