// Package gedcom holds the text side of the import pipeline.
//
// Everything here works on strings or io.Readers and never touches the
// database:
//
//   - Reformat turns a raw record into canonical lines (tag aliases, value
//     clean-up, CONC merging, DATE canonicalization).
//   - ParseDate and CalendarDate model GEDCOM dates across the Gregorian,
//     Julian, French Republican, Hebrew and Hijri calendars.
//   - SoundexStd and SoundexDM build the phonetic keys stored with names
//     and places.
//   - ParseNames, ExtractPlaces, ExtractFactDates and ExtractLinks derive
//     the secondary index rows for a record.
//   - NewRecordScanner, DetectCharset and NewCharsetDecoder split and
//     decode whole GEDCOM files.
//
// The database-facing orchestration lives in internal/core.
package gedcom
