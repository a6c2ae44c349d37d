package gedcom

import (
	"testing"
)

// ----------------------------------------------------------------------------
// Reformat Tests
// ----------------------------------------------------------------------------

func TestReformat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  ReformatOptions
		want  string
	}{
		{
			name:  "tidies whitespace and aliases tags",
			input: "0 @I1@ INDI\n1 NAME  John   /Smith/ \n1 SEX m\n1 BIRTH Y\n2 DATE 1 jan 1900\n2 PLACE London,England",
			want:  "0 @I1@ INDI\n1 NAME John /Smith/\n1 SEX M\n1 BIRT\n2 DATE 1 JAN 1900\n2 PLAC London, England",
		},
		{
			name:  "lower case tags are upper cased",
			input: "0 @I1@ indi\n1 name Ann",
			want:  "0 @I1@ INDI\n1 NAME Ann",
		},
		{
			name:  "merges CONC without space",
			input: "0 @N1@ NOTE First part\n1 CONC second",
			want:  "0 @N1@ NOTE First partsecond",
		},
		{
			name:  "merges CONC with space for word wrapped notes",
			input: "0 @N1@ NOTE First part\n1 CONC second",
			opts:  ReformatOptions{WordWrappedNotes: true},
			want:  "0 @N1@ NOTE First part second",
		},
		{
			name:  "empty NOTE keeps its space for CONC",
			input: "0 @I1@ INDI\n1 NOTE\n2 CONC text",
			want:  "0 @I1@ INDI\n1 NOTE text",
		},
		{
			name:  "mixed line endings",
			input: "0 @I1@ INDI\r1 NAME Ann\r\n1 SEX F",
			want:  "0 @I1@ INDI\n1 NAME Ann\n1 SEX F",
		},
		{
			name:  "header loses xref and value",
			input: "0 @H1@ HEAD junk\n1 SOUR PAF",
			want:  "0 HEAD\n1 SOUR PAF",
		},
		{
			name:  "trailer loses value",
			input: "0 TRAILER stuff",
			want:  "0 TRLR",
		},
		{
			name:  "FILE strips media path and backslashes",
			input: "0 @M1@ OBJE\n1 FILE C:\\media\\photos\\a.jpg",
			opts:  ReformatOptions{MediaPath: `C:\media\`},
			want:  "0 @M1@ OBJE\n1 FILE photos/a.jpg",
		},
		{
			name:  "TMG coordinates become MAP",
			input: "0 @I1@ INDI\n1 BIRT\n2 PLAC Pennsylvania, USA, 395945N0751013W",
			want:  "0 @I1@ INDI\n1 BIRT\n2 PLAC Pennsylvania, USA\n3 MAP\n4 LATI N39.9958\n4 LONG W75.1703",
		},
		{
			name:  "value case rules",
			input: "0 @I1@ INDI\n1 RESN invisible\n1 AFN abc-12\n1 FAMC @F1@\n2 PEDI Birth\n1 BAPL\n2 STAT CANCELLED\n2 TEMP slake",
			want:  "0 @I1@ INDI\n1 RESN confidential\n1 AFN ABC-12\n1 FAMC @F1@\n2 PEDI birth\n1 BAPL\n2 STAT CANCELED\n2 TEMP SLAKE",
		},
		{
			name:  "unknown sex becomes U",
			input: "0 @I1@ INDI\n1 SEX male",
			want:  "0 @I1@ INDI\n1 SEX U",
		},
		{
			name:  "control characters in notes",
			input: "0 @N1@ NOTE a\x01b\x7Fc",
			want:  "0 @N1@ NOTE a?b?c",
		},
		{
			name:  "Y cleared when the last line is a DATE",
			input: "0 @I1@ INDI\n1 DEAT Y\n2 DATE 1900",
			want:  "0 @I1@ INDI\n1 DEAT\n2 DATE 1900",
		},
		{
			name:  "Y kept without DATE or PLAC",
			input: "0 @I1@ INDI\n1 BIRT y\n2 SOUR @S1@\n1 DEAT Y",
			want:  "0 @I1@ INDI\n1 BIRT Y\n2 SOUR @S1@\n1 DEAT Y",
		},
		{
			name:  "lines that are not GEDCOM are dropped",
			input: "0 @I1@ INDI\ngarbage here\n\n1 NAME Ann",
			want:  "0 @I1@ INDI\n1 NAME Ann",
		},
		{
			name:  "formatting characters removed",
			input: "\uFEFF0 @I1@ INDI\n1 NAME \u200EAnn\u200F",
			want:  "0 @I1@ INDI\n1 NAME Ann",
		},
		{
			name:  "NOTE value kept verbatim",
			input: "0 @I1@ INDI\n1 NOTE  two  spaces ",
			want:  "0 @I1@ INDI\n1 NOTE  two  spaces ",
		},
		{
			name:  "leading zeros in level",
			input: "00 @I1@ INDI\n01 NAME Ann",
			want:  "0 @I1@ INDI\n1 NAME Ann",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reformat(tt.input, tt.opts)
			if got != tt.want {
				t.Errorf("Reformat() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestReformat_Idempotent(t *testing.T) {
	input := "0 @I1@ INDI\n1 NAME  John /Smith/\n1 BIRTH\n2 DATE abt. 1900\n2 PLAC Town ,County"
	once := Reformat(input, ReformatOptions{})
	twice := Reformat(once, ReformatOptions{})
	if once != twice {
		t.Errorf("second pass changed record:\n%q\n%q", once, twice)
	}
}

func TestCanonicalTag(t *testing.T) {
	tests := map[string]string{
		"birth":         "BIRT",
		"_PGVU":         "_KT_USER",
		"_WT_OBJE_SORT": "_KT_OBJE_SORT",
		"_FILE":         "FILE",
		"PUBLICATION":   "PUBL",
		"WEB":           "WWW",
		"_CUSTOM":       "_CUSTOM",
	}
	for in, want := range tests {
		if got := CanonicalTag(in); got != want {
			t.Errorf("CanonicalTag(%q) = %q, want %q", in, got, want)
		}
	}
}
