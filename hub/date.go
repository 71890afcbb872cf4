package hub

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataCite dateType values used by the adapters.
const (
	DateIssued    = "Issued"
	DateCreated   = "Created"
	DateUpdated   = "Updated"
	DateAvailable = "Available"
	DateAccepted  = "Accepted"
	DateSubmitted = "Submitted"
)

// DateParts splits an ISO 8601 date or datetime ("2024", "2024-03",
// "2024-03-01T10:00:00Z") into year, month and day. Missing parts are
// omitted; nil means no year could be read.
func DateParts(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}
	// Ranges ("2020-01/2020-06") keep their start.
	if i := strings.Index(s, "/"); i > 0 {
		s = s[:i]
	}

	fields := strings.Split(s, "-")
	var parts []int
	for i, f := range fields {
		if i > 2 {
			break
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		if i == 0 && (len(f) != 4) {
			return nil
		}
		if i == 1 && (n < 1 || n > 12) {
			break
		}
		if i == 2 && (n < 1 || n > 31) {
			break
		}
		parts = append(parts, n)
	}
	return parts
}

// FormatDateParts joins date parts with sep, zero padding month and day.
func FormatDateParts(parts []int, sep string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 2 {
			break
		}
		if i > 0 {
			b.WriteString(sep)
			fmt.Fprintf(&b, "%02d", p)
			continue
		}
		fmt.Fprintf(&b, "%04d", p)
	}
	return b.String()
}

// YearOf returns the year of an ISO date string, or 0.
func YearOf(s string) int {
	parts := DateParts(s)
	if len(parts) == 0 {
		return 0
	}
	return parts[0]
}

// PublicationDate returns the most precise known publication date: the
// Issued date when it agrees with publicationYear, otherwise the year.
func (m *Metadata) PublicationDate() string {
	if issued := m.DateOf(DateIssued); issued != "" {
		if m.PublicationYear == 0 || YearOf(issued) == m.PublicationYear {
			return issued
		}
	}
	if m.PublicationYear > 0 {
		return strconv.Itoa(m.PublicationYear)
	}
	return ""
}

// SetIssued records an issued date and derives publicationYear from it.
func (m *Metadata) SetIssued(date string) {
	date = strings.TrimSpace(date)
	if date == "" {
		return
	}
	m.Dates = append(m.Dates, Date{Date: date, DateType: DateIssued})
	if y := YearOf(date); y > 0 && m.PublicationYear == 0 {
		m.PublicationYear = y
	}
}

// ISODate formats t as a UTC calendar date.
func ISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
