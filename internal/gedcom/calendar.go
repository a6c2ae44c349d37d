package gedcom

// calendar.go converts calendar dates to julian day numbers.
//
// Every calendar implements the same small contract: months are numbered
// from 1, a year of 0 means "unknown", and negative Gregorian/Julian years
// are B.C. (-1 is 1 B.C., there is no year 0).

// Calendar identifies a GEDCOM calendar escape.
type Calendar int

const (
	Gregorian Calendar = iota
	Julian
	French
	Hebrew
	Hijri
)

// Escape returns the GEDCOM calendar escape, e.g. "@#DGREGORIAN@".
func (c Calendar) Escape() string {
	switch c {
	case Julian:
		return "@#DJULIAN@"
	case French:
		return "@#DFRENCH R@"
	case Hebrew:
		return "@#DHEBREW@"
	case Hijri:
		return "@#DHIJRI@"
	default:
		return "@#DGREGORIAN@"
	}
}

func (c Calendar) String() string {
	switch c {
	case Julian:
		return "julian"
	case French:
		return "french"
	case Hebrew:
		return "hebrew"
	case Hijri:
		return "hijri"
	default:
		return "gregorian"
	}
}

// calendarFromEscape maps an escape such as "@#DJULIAN@" to its calendar.
func calendarFromEscape(esc string) (Calendar, bool) {
	switch esc {
	case "@#DGREGORIAN@":
		return Gregorian, true
	case "@#DJULIAN@":
		return Julian, true
	case "@#DFRENCH R@":
		return French, true
	case "@#DHEBREW@":
		return Hebrew, true
	case "@#DHIJRI@":
		return Hijri, true
	}
	return Gregorian, false
}

var monthTokens = map[Calendar][]string{
	Gregorian: {"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"},
	Julian:    {"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"},
	French:    {"VEND", "BRUM", "FRIM", "NIVO", "PLUV", "VENT", "GERM", "FLOR", "PRAI", "MESS", "THER", "FRUC", "COMP"},
	Hebrew:    {"TSH", "CSH", "KSL", "TVT", "SHV", "ADR", "ADS", "NSN", "IYR", "SVN", "TMZ", "AAV", "ELL"},
	Hijri:     {"MUHAR", "SAFAR", "RABIA", "RABIT", "JUMAA", "JUMAT", "RAJAB", "SHAAB", "RAMAD", "SHAWW", "DHUAQ", "DHUAH"},
}

// monthNumber returns the 1-based month number of tok in calendar c, or 0.
func monthNumber(c Calendar, tok string) int {
	for i, t := range monthTokens[c] {
		if t == tok {
			return i + 1
		}
	}
	return 0
}

func monthsInYear(c Calendar) int {
	return len(monthTokens[c])
}

// toJD returns the julian day number of y-m-d in calendar c.
func toJD(c Calendar, y, m, d int) int {
	switch c {
	case Julian:
		return julianToJD(y, m, d)
	case French:
		return 2375444 + d + m*30 + y*365 + y/4
	case Hebrew:
		return hebrewToJD(y, m, d)
	case Hijri:
		return d + ceilHalfMonths(m-1) + (y-1)*354 + floorDiv(3+11*y, 30) + 1948439
	default:
		return gregorianToJD(y, m, d)
	}
}

func gregorianToJD(y, m, d int) int {
	if y < 0 {
		y++
	}
	a := (14 - m) / 12
	y = y + 4800 - a
	m = m + 12*a - 3
	return d + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

func julianToJD(y, m, d int) int {
	if y < 0 {
		y++
	}
	a := (14 - m) / 12
	y = y + 4800 - a
	m = m + 12*a - 3
	return d + (153*m+2)/5 + 365*y + y/4 - 32083
}

// ceilHalfMonths is ceil(29.5*n), the days before month n+1 of a Hijri year.
func ceilHalfMonths(n int) int {
	return (59*n + 1) / 2
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// nextYear skips the missing year 0 of the B.C./A.D. calendars.
func nextYear(c Calendar, y int) int {
	if y == -1 && (c == Gregorian || c == Julian) {
		return 1
	}
	return y + 1
}

// nextMonth returns the year and month following y-m.
func nextMonth(c Calendar, y, m int) (int, int) {
	if c == Hebrew {
		if !hebrewLeapYear(y) && (m == 5 || m == 6) {
			return y, m + 2
		}
		if m == 13 {
			return y + 1, 1
		}
		return y, m + 1
	}
	if m >= monthsInYear(c) {
		return nextYear(c, y), 1
	}
	return y, m + 1
}

// Hebrew calendar, months numbered from Tishri (1) to Elul (13). Month 6
// (Adar I) only exists in leap years; in common years it means Adar.

const hebrewEpoch = 347998

func hebrewLeapYear(y int) bool {
	return floorMod(7*y+1, 19) < 7
}

func floorMod(a, b int) int {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// hebrewElapsedDays counts days from the epoch to the molad of Tishri of
// year y, applying the first postponement rule.
func hebrewElapsedDays(y int) int {
	months := floorDiv(235*y-234, 19)
	parts := 12084 + 13753*months
	day := months*29 + floorDiv(parts, 25920)
	if floorMod(3*(day+1), 7) < 3 {
		day++
	}
	return day
}

func hebrewYearDelay(y int) int {
	last := hebrewElapsedDays(y - 1)
	present := hebrewElapsedDays(y)
	next := hebrewElapsedDays(y + 1)
	switch {
	case next-present == 356:
		return 2
	case present-last == 382:
		return 1
	}
	return 0
}

func hebrewNewYear(y int) int {
	return hebrewEpoch + hebrewElapsedDays(y) + hebrewYearDelay(y)
}

func hebrewYearLength(y int) int {
	return hebrewNewYear(y+1) - hebrewNewYear(y)
}

func hebrewMonthLength(y, m int) int {
	switch m {
	case 2:
		if hebrewYearLength(y)%10 == 5 {
			return 30
		}
		return 29
	case 3:
		if hebrewYearLength(y)%10 == 3 {
			return 29
		}
		return 30
	case 6:
		if hebrewLeapYear(y) {
			return 30
		}
		return 0
	case 4, 7, 9, 11, 13:
		return 29
	}
	return 30
}

func hebrewToJD(y, m, d int) int {
	if m == 6 && !hebrewLeapYear(y) {
		m = 7
	}
	jd := hebrewNewYear(y) + d - 1
	for i := 1; i < m; i++ {
		jd += hebrewMonthLength(y, i)
	}
	return jd
}
