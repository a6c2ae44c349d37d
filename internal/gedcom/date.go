package gedcom

import (
	"regexp"
	"strconv"
	"strings"
)

// CalendarDate is one (possibly partial) date in a specific calendar.
// Zero fields are unknown. MinJD and MaxJD bound the julian days the date
// can refer to: a single day, a whole month or a whole year.
type CalendarDate struct {
	Calendar Calendar
	Day      int
	Month    int
	Year     int
	MinJD    int
	MaxJD    int
}

// MonthToken returns the GEDCOM month abbreviation, or "" when the month is
// unknown.
func (d CalendarDate) MonthToken() string {
	if d.Month < 1 || d.Month > monthsInYear(d.Calendar) {
		return ""
	}
	if d.Calendar == Hebrew && d.Month == 7 && !hebrewLeapYear(d.Year) {
		return "ADR"
	}
	return monthTokens[d.Calendar][d.Month-1]
}

// Date is a parsed DATE value: a single date with an optional qualifier
// (ABT, BEF, ...) or a period/range with two dates.
type Date struct {
	Qualifier1 string
	Date1      CalendarDate
	Qualifier2 string
	Date2      *CalendarDate
	Text       string
}

const monthAlternation = `JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC|` +
	`TSH|CSH|KSL|TVT|SHV|ADR|ADS|NSN|IYR|SVN|TMZ|AAV|ELL|` +
	`VEND|BRUM|FRIM|NIVO|PLUV|VENT|GERM|FLOR|PRAI|MESS|THER|FRUC|COMP|` +
	`MUHAR|SAFAR|RABI[AT]|JUMA[AT]|RAJAB|SHAAB|RAMAD|SHAWW|DHUAQ|DHUAH`

var (
	dateTextRE    = regexp.MustCompile(`^(.*) ?[(](.*)[)]`)
	dateRangeRE   = regexp.MustCompile(`^(FROM|BET) (.+) (AND|TO) (.+)`)
	dateQualRE    = regexp.MustCompile(`^(TO|FROM|BEF|AFT|CAL|EST|INT|ABT) (.+)`)
	dateEscapeRE  = regexp.MustCompile(`^(@#D[A-Z ]+@) ?(.*)`)
	dateDMYRE     = regexp.MustCompile(`^(\d?\d?) ?(` + monthAlternation + `) ?((?:\d+(?: B\.C\.)?|\d\d\d\d/\d\d)?)$`)
	dateYearRE    = regexp.MustCompile(`^(\d+(?: B\.C\.)?|\d\d\d\d/\d\d)$`)
	anyYearRE     = regexp.MustCompile(`\b(\d{3,4})\b`)
	anyMonthRE    = regexp.MustCompile(`(` + monthAlternation + `)`)
	anyDayRE      = regexp.MustCompile(`\b(\d\d?)\b`)
	julianYearRE  = regexp.MustCompile(`^\d+( B\.C\.)|\d\d\d\d/\d\d$`)
	hebrewYearRE  = regexp.MustCompile(`^[345]\d\d\d$`)
	dualYearRE    = regexp.MustCompile(`^(\d\d\d\d)/\d{1,4}$`)
	bcYearRE      = regexp.MustCompile(`^(\d+) B\.C\.$`)
	leadingIntRE  = regexp.MustCompile(`^\d+`)
	hebrewMonths  = regexp.MustCompile(`^(TSH|CSH|KSL|TVT|SHV|ADR|ADS|NSN|IYR|SVN|TMZ|AAV|ELL)$`)
	frenchMonths  = regexp.MustCompile(`^(VEND|BRUM|FRIM|NIVO|PLUV|VENT|GERM|FLOR|PRAI|MESS|THER|FRUC|COMP)$`)
	hijriMonths   = regexp.MustCompile(`^(MUHAR|SAFAR|RABI[AT]|JUMA[AT]|RAJAB|SHAAB|RAMAD|SHAWW|DHUAQ|DHUAH)$`)
	westernMonths = regexp.MustCompile(`^(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)$`)
)

// ParseDate parses a canonical DATE value (see NormalizeDate). It never
// fails: unrecognizable input yields a date with whatever year, month and
// day could be salvaged, possibly none.
func ParseDate(s string) Date {
	var d Date
	if m := dateTextRE.FindStringSubmatch(s); m != nil {
		s = m[1]
		d.Text = m[2]
	}
	s = strings.TrimSpace(s)

	if m := dateRangeRE.FindStringSubmatch(s); m != nil {
		d.Qualifier1 = m[1]
		d.Date1 = parseCalendarDate(m[2])
		d.Qualifier2 = m[3]
		d2 := parseCalendarDate(m[4])
		d.Date2 = &d2
		return d
	}
	if m := dateQualRE.FindStringSubmatch(s); m != nil {
		d.Qualifier1 = m[1]
		d.Date1 = parseCalendarDate(m[2])
		return d
	}
	d.Date1 = parseCalendarDate(s)
	return d
}

func parseCalendarDate(s string) CalendarDate {
	var esc string
	if m := dateEscapeRE.FindStringSubmatch(s); m != nil {
		esc, s = m[1], m[2]
	}

	var day, month, year string
	if m := dateDMYRE.FindStringSubmatch(s); m != nil {
		day, month, year = m[1], m[2], m[3]
	} else if m := dateYearRE.FindStringSubmatch(s); m != nil {
		year = m[1]
	} else {
		if m := anyYearRE.FindStringSubmatch(s); m != nil {
			year = m[1]
		}
		if m := anyMonthRE.FindStringSubmatch(s); m != nil {
			month = m[1]
			if m := anyDayRE.FindStringSubmatch(s); m != nil {
				day = m[1]
			}
		}
	}

	// Month names unique to one calendar override any escape.
	switch {
	case hebrewMonths.MatchString(month):
		esc = Hebrew.Escape()
	case frenchMonths.MatchString(month):
		esc = French.Escape()
	case hijriMonths.MatchString(month):
		esc = Hijri.Escape()
	case julianYearRE.MatchString(year):
		esc = Julian.Escape()
	}

	cal, ok := calendarFromEscape(esc)
	if !ok {
		switch {
		case westernMonths.MatchString(month):
			cal = Gregorian
		case hebrewYearRE.MatchString(year):
			cal = Hebrew
		default:
			cal = Gregorian
		}
	}
	return newCalendarDate(cal, year, month, day)
}

func newCalendarDate(cal Calendar, year, month, day string) CalendarDate {
	d := CalendarDate{Calendar: cal}
	d.Day, _ = strconv.Atoi(day)
	d.Month = monthNumber(cal, month)
	if d.Month == 0 {
		d.Day = 0
	}
	d.Year = extractYear(cal, year)

	if d.Year == 0 {
		return d
	}
	switch {
	case d.Month == 0:
		d.MinJD = toJD(cal, d.Year, 1, 1)
		d.MaxJD = toJD(cal, nextYear(cal, d.Year), 1, 1) - 1
	case d.Day == 0:
		ny, nm := nextMonth(cal, d.Year, d.Month)
		d.MinJD = toJD(cal, d.Year, d.Month, 1)
		d.MaxJD = toJD(cal, ny, nm, 1) - 1
	default:
		d.MinJD = toJD(cal, d.Year, d.Month, d.Day)
		d.MaxJD = d.MinJD
	}
	return d
}

// MaxYear bounds the years a date may carry; anything larger is treated as
// an unknown year. d_year is a SMALLINT.
const MaxYear = 9999

// extractYear reads dual years ("1741/42" is 1742, the new-style year) and
// B.C. years (negative) for the Julian calendar.
func extractYear(cal Calendar, year string) int {
	y := parseYear(cal, year)
	if y > MaxYear || y < -MaxYear {
		return 0
	}
	return y
}

func parseYear(cal Calendar, year string) int {
	if cal == Julian {
		if m := dualYearRE.FindStringSubmatch(year); m != nil {
			y, _ := strconv.Atoi(m[1])
			return y + 1
		}
		if m := bcYearRE.FindStringSubmatch(year); m != nil {
			y, _ := strconv.Atoi(m[1])
			return -y
		}
	}
	y, _ := strconv.Atoi(leadingIntRE.FindString(year))
	return y
}
