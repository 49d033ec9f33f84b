package model

import (
	"fmt"
	"time"
)

// Wire layouts for calendar dates and wall-clock times of day. All dates and
// times of day in the system are civil values interpreted in the configured
// timezone; they only become instants when combined via CombineAt.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// User represents an account in the system. It carries the notification
// endpoints (push token, email) used by the reminder dispatcher.
type User struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	DisplayName  *string   `json:"displayName,omitempty"`
	TimeZone     string    `json:"timeZone"`
	PushToken    *string   `json:"pushToken,omitempty"`
	CreationTime time.Time `json:"creationTime"`
}

// Frequency describes how often a medication recurs.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Medication is the schedule aggregate: an ordered list of wall-clock times,
// one per daily occurrence, bounded by start and optional end date.
type Medication struct {
	MedicationID string    `json:"medicationId"`
	OwnerID      string    `json:"ownerId"`
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
	Frequency    Frequency `json:"frequency"`
	Times        []string  `json:"times"`
	StartDate    string    `json:"startDate"`
	EndDate      *string   `json:"endDate,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	CreationTime time.Time `json:"creationTime"`
}

// TimesPerDay returns the number of dose occurrences per scheduled day.
func (m *Medication) TimesPerDay() int { return len(m.Times) }

// ScheduledOn reports whether the medication has doses on the given calendar
// date: inside [StartDate, EndDate] and, for weekly/monthly frequencies, on
// the weekday / day-of-month anchored by StartDate.
func (m *Medication) ScheduledOn(date string, loc *time.Location) (bool, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return false, err
	}
	start, err := ParseDate(m.StartDate, loc)
	if err != nil {
		return false, err
	}
	if d.Before(start) {
		return false, nil
	}
	if m.EndDate != nil {
		end, err := ParseDate(*m.EndDate, loc)
		if err != nil {
			return false, err
		}
		if d.After(end) {
			return false, nil
		}
	}
	switch m.Frequency {
	case FrequencyWeekly:
		return d.Weekday() == start.Weekday(), nil
	case FrequencyMonthly:
		return d.Day() == start.Day(), nil
	default:
		return true, nil
	}
}

// DoseRecord is one occurrence of a medication on a calendar date, identified
// by an index into the medication's Times. Taken and Missed are mutually
// exclusive; TakenAt is set iff Taken.
type DoseRecord struct {
	MedicationID  string     `json:"medicationId"`
	Date          string     `json:"date"`
	DoseIndex     int        `json:"doseIndex"`
	ScheduledTime string     `json:"scheduledTime"`
	Taken         bool       `json:"taken"`
	Missed        bool       `json:"missed"`
	TakenAt       *time.Time `json:"takenAt,omitempty"`
}

// ReminderType distinguishes one-shot from recurring reminders.
type ReminderType string

const (
	ReminderSingle ReminderType = "single"
	ReminderDaily  ReminderType = "daily"
)

// ReminderStatus is the dispatch state of a reminder.
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
)

// Reminder schedules a notification ahead of a specific dose. For single
// reminders AnchorDate is the firing date and Status is terminal once sent.
// For daily reminders AnchorDate only records creation intent; LastFiredOn
// is the authoritative guard against firing twice on the same day, with
// Status flipped back to pending at local midnight for operator visibility.
type Reminder struct {
	ReminderID   string         `json:"reminderId"`
	OwnerID      string         `json:"ownerId"`
	MedicationID string         `json:"medicationId"`
	DoseIndex    int            `json:"doseIndex"`
	ReminderTime string         `json:"reminderTime"`
	AnchorDate   string         `json:"date"`
	Type         ReminderType   `json:"type"`
	Status       ReminderStatus `json:"status"`
	LastFiredOn  *string        `json:"lastFiredOn,omitempty"`
	CreationTime time.Time      `json:"creationTime"`
}

// DoseStatus is the pure temporal view of a dose record at a given instant.
type DoseStatus struct {
	Taken        bool      `json:"isTaken"`
	Missed       bool      `json:"isMissed"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	WindowStart  time.Time `json:"windowStart"`
	WindowEnd    time.Time `json:"windowEnd"`
	WithinWindow bool      `json:"isWithinWindow"`
	TimeToTake   bool      `json:"isTimeToTake"`
	CanTake      bool      `json:"canTake"`
}

// OutboxRow is one pending mirror mutation recorded alongside a store write.
type OutboxRow struct {
	ID           int64
	Op           string
	AggregateID  string
	Payload      []byte
	AttemptCount int
}

// ParseDate parses a calendar date in the given location.
func ParseDate(v string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, ErrValidation)
	}
	return t, nil
}

// ParseTimeOfDay validates a 24-hour HH:MM:SS value.
func ParseTimeOfDay(v string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", v, ErrValidation)
	}
	return t, nil
}

// CombineAt resolves a civil date plus time-of-day into an instant in loc.
func CombineAt(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
}

// DateOf truncates an instant to its calendar date string.
func DateOf(t time.Time) string { return t.Format(DateLayout) }
