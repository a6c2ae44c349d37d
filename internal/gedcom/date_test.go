package gedcom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ----------------------------------------------------------------------------
// NormalizeDate Tests
// ----------------------------------------------------------------------------

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 jan 1900", "1 JAN 1900"},
		{"14-MAY, 1900", "14 MAY 1900"},
		{"1jan1900", "1 JAN 1900"},
		{"bet. 1900 - 1910", "BET 1900 AND 1910"},
		{"from 1800 - 1850", "FROM 1800 TO 1850"},
		{"cir 1750", "ABT 1750"},
		{"apx 1750", "ABT 1750"},
		{"abt. 1800", "ABT 1800"},
		{"@#DJULIAN@ BET 1700 AND 1710", "BET @#DJULIAN@ 1700 AND @#DJULIAN@ 1710"},
		{"@#DJULIAN@ from 1700 to 1710", "FROM @#DJULIAN@ 1700 TO @#DJULIAN@ 1710"},
		{"@#DJULIAN@ aft 1700", "AFT @#DJULIAN@ 1700"},
		{"10 B.C.", "10 B.C."},
		{"int 1900 (about then)", "INT 1900 (about then)"},
		{"1 JAN 1741/42", "1 JAN 1741/42"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeDate(tt.input); got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Date
	}{
		{
			name:  "full gregorian date",
			input: "1 JAN 1900",
			want: Date{Date1: CalendarDate{
				Calendar: Gregorian, Day: 1, Month: 1, Year: 1900, MinJD: 2415021, MaxJD: 2415021,
			}},
		},
		{
			name:  "month and year span the month",
			input: "JAN 1900",
			want: Date{Date1: CalendarDate{
				Calendar: Gregorian, Month: 1, Year: 1900, MinJD: 2415021, MaxJD: 2415051,
			}},
		},
		{
			name:  "qualified year spans the year",
			input: "ABT 1900",
			want: Date{Qualifier1: "ABT", Date1: CalendarDate{
				Calendar: Gregorian, Year: 1900, MinJD: 2415021, MaxJD: 2415385,
			}},
		},
		{
			name:  "range has two dates",
			input: "BET 1900 AND JAN 1900",
			want: Date{
				Qualifier1: "BET",
				Date1:      CalendarDate{Calendar: Gregorian, Year: 1900, MinJD: 2415021, MaxJD: 2415385},
				Qualifier2: "AND",
				Date2:      &CalendarDate{Calendar: Gregorian, Month: 1, Year: 1900, MinJD: 2415021, MaxJD: 2415051},
			},
		},
		{
			name:  "B.C. years are julian",
			input: "10 B.C.",
			want: Date{Date1: CalendarDate{
				Calendar: Julian, Year: -10, MinJD: 1717771, MaxJD: 1718135,
			}},
		},
		{
			name:  "dual year uses the new style year",
			input: "1 JAN 1741/42",
			want: Date{Date1: CalendarDate{
				Calendar: Julian, Day: 1, Month: 1, Year: 1742, MinJD: 2357324, MaxJD: 2357324,
			}},
		},
		{
			name:  "french month selects the calendar",
			input: "1 VEND 1",
			want: Date{Date1: CalendarDate{
				Calendar: French, Day: 1, Month: 1, Year: 1, MinJD: 2375840, MaxJD: 2375840,
			}},
		},
		{
			name:  "hijri month selects the calendar",
			input: "1 MUHAR 1",
			want: Date{Date1: CalendarDate{
				Calendar: Hijri, Day: 1, Month: 1, Year: 1, MinJD: 1948440, MaxJD: 1948440,
			}},
		},
		{
			name:  "hebrew date",
			input: "@#DHEBREW@ 1 TSH 5785",
			want: Date{Date1: CalendarDate{
				Calendar: Hebrew, Day: 1, Month: 1, Year: 5785, MinJD: 2460587, MaxJD: 2460587,
			}},
		},
		{
			name:  "bare year in hebrew range",
			input: "5785",
			want: Date{Date1: CalendarDate{
				Calendar: Hebrew, Year: 5785, MinJD: 2460587, MaxJD: 2460941,
			}},
		},
		{
			name:  "interpreted date keeps text",
			input: "INT 1900 (about then)",
			want: Date{Qualifier1: "INT", Text: "about then", Date1: CalendarDate{
				Calendar: Gregorian, Year: 1900, MinJD: 2415021, MaxJD: 2415385,
			}},
		},
		{
			name:  "invalid date salvages year month and day",
			input: "SOMETIME 5 JAN OR SO 1900",
			want: Date{Date1: CalendarDate{
				Calendar: Gregorian, Day: 5, Month: 1, Year: 1900, MinJD: 2415025, MaxJD: 2415025,
			}},
		},
		{
			name:  "no year means no julian days",
			input: "5 JAN",
			want: Date{Date1: CalendarDate{
				Calendar: Gregorian, Day: 5, Month: 1,
			}},
		},
		{
			name:  "oversized year is unknown",
			input: "1 JAN 70000",
			want: Date{Date1: CalendarDate{
				Calendar: Gregorian, Day: 1, Month: 1,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseDate(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestCalendarDate_MonthToken(t *testing.T) {
	tests := []struct {
		date CalendarDate
		want string
	}{
		{CalendarDate{Calendar: Gregorian, Month: 12}, "DEC"},
		{CalendarDate{Calendar: French, Month: 13}, "COMP"},
		{CalendarDate{Calendar: Hijri, Month: 3}, "RABIA"},
		{CalendarDate{Calendar: Hebrew, Month: 7, Year: 5785}, "ADR"},
		{CalendarDate{Calendar: Hebrew, Month: 7, Year: 5784}, "ADS"},
		{CalendarDate{Calendar: Gregorian}, ""},
	}
	for _, tt := range tests {
		if got := tt.date.MonthToken(); got != tt.want {
			t.Errorf("MonthToken(%+v) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestCalendar_Escape(t *testing.T) {
	for _, c := range []Calendar{Gregorian, Julian, French, Hebrew, Hijri} {
		got, ok := calendarFromEscape(c.Escape())
		if !ok || got != c {
			t.Errorf("calendarFromEscape(%q) = %v, %v", c.Escape(), got, ok)
		}
	}
}

func TestHebrewMonthLengths(t *testing.T) {
	// A common year has 353-355 days, a leap year 383-385.
	for y := 5700; y < 5800; y++ {
		total := 0
		for m := 1; m <= 13; m++ {
			total += hebrewMonthLength(y, m)
		}
		if total != hebrewYearLength(y) {
			t.Fatalf("year %d: months sum to %d, year length %d", y, total, hebrewYearLength(y))
		}
		switch total {
		case 353, 354, 355:
			if hebrewLeapYear(y) {
				t.Errorf("year %d: leap year with %d days", y, total)
			}
		case 383, 384, 385:
			if !hebrewLeapYear(y) {
				t.Errorf("year %d: common year with %d days", y, total)
			}
		default:
			t.Errorf("year %d: impossible length %d", y, total)
		}
	}
}
