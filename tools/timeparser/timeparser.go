package timeparser

import (
	"fmt"
	"time"
)

// ParseReadingDate attempts to parse a reading date with the formats the
// tenant and landlord apps send
func ParseReadingDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,          // Standard RFC3339
		"2006-01-02",          // YYYY-MM-DD
		"02.01.2006",          // DD.MM.YYYY
		"02.01.2006 15:04",    // DD.MM.YYYY HH:mm
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", dateStr, lastErr)
}

// IsWithinTolerance checks if the reading date is within tolerance of received time
func IsWithinTolerance(readingTime, receivedTime time.Time, toleranceMinutes int) bool {
	diff := readingTime.Sub(receivedTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceMinutes)*time.Minute
}

// CalendarDay returns the date of t as written in its own location, at UTC
// midnight. Days from different zones compare by their calendar fields.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
