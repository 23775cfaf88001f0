package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/rental-billing-worker/tools/timeparser"
)

func TestParseReadingDate_ISODate(t *testing.T) {
	result, err := timeparser.ParseReadingDate("2025-12-29")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}

	expected := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingDate_FinnishDate(t *testing.T) {
	result, err := timeparser.ParseReadingDate("29.12.2025")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}

	expected := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingDate_SlashFormat(t *testing.T) {
	result, err := timeparser.ParseReadingDate("29/12/2025 10:30:45")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingDate_RFC3339(t *testing.T) {
	result, err := timeparser.ParseReadingDate("2025-12-29T10:30:45Z")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingDate_Invalid(t *testing.T) {
	_, err := timeparser.ParseReadingDate("invalid-date-string")
	if err == nil {
		t.Error("Expected error for invalid date")
	}
}

func TestIsWithinTolerance_WithinRange(t *testing.T) {
	readingTime := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)
	receivedTime := time.Date(2025, 12, 29, 10, 33, 0, 0, time.UTC) // 3 minutes later

	if !timeparser.IsWithinTolerance(readingTime, receivedTime, 5) {
		t.Error("Expected timestamp to be within tolerance")
	}
}

func TestIsWithinTolerance_OutsideRange(t *testing.T) {
	readingTime := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)
	receivedTime := time.Date(2025, 12, 29, 10, 36, 0, 0, time.UTC) // 6 minutes later

	if timeparser.IsWithinTolerance(readingTime, receivedTime, 5) {
		t.Error("Expected timestamp to be outside tolerance")
	}
}

func TestIsWithinTolerance_NegativeDifference(t *testing.T) {
	readingTime := time.Date(2025, 12, 29, 10, 35, 0, 0, time.UTC)
	receivedTime := time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC) // 3 minutes before

	if !timeparser.IsWithinTolerance(readingTime, receivedTime, 5) {
		t.Error("Expected timestamp to be within tolerance (negative difference)")
	}
}

func TestCalendarDay_KeepsWrittenDate(t *testing.T) {
	newYork := time.FixedZone("EDT", -4*60*60)
	in := time.Date(2025, 6, 15, 22, 30, 0, 0, newYork) // already June 16 in UTC

	got := timeparser.CalendarDay(in)

	expected := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestCalendarDay_SameDateAcrossZones(t *testing.T) {
	utcMidnight := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	helsinkiEvening := time.Date(2025, 6, 16, 23, 0, 0, 0, time.FixedZone("EEST", 3*60*60))

	if !timeparser.CalendarDay(utcMidnight).Equal(timeparser.CalendarDay(helsinkiEvening)) {
		t.Error("Expected both times to fall on the same calendar day")
	}
}
