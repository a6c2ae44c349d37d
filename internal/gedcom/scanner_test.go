package gedcom

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func scanAll(t *testing.T, input string) []string {
	t.Helper()
	s := NewRecordScanner(strings.NewReader(input))
	var out []string
	for s.Scan() {
		out = append(out, s.Text())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	return out
}

func TestRecordScanner(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "LF endings",
			input: "0 HEAD\n1 CHAR UTF-8\n0 @I1@ INDI\n1 NAME Ann\n0 TRLR\n",
			want:  []string{"0 HEAD\n1 CHAR UTF-8", "0 @I1@ INDI\n1 NAME Ann", "0 TRLR"},
		},
		{
			name:  "CRLF endings",
			input: "0 HEAD\r\n1 CHAR UTF-8\r\n0 TRLR\r\n",
			want:  []string{"0 HEAD\r\n1 CHAR UTF-8", "0 TRLR"},
		},
		{
			name:  "bare CR endings",
			input: "0 HEAD\r1 CHAR UTF-8\r0 TRLR",
			want:  []string{"0 HEAD\r1 CHAR UTF-8", "0 TRLR"},
		},
		{
			name:  "blank lines between records",
			input: "\n\n0 HEAD\n\n\n0 @I1@ INDI\n1 NAME Ann\n\n",
			want:  []string{"0 HEAD", "0 @I1@ INDI\n1 NAME Ann"},
		},
		{
			name:  "final record without newline",
			input: "0 @I1@ INDI\n1 NAME Ann",
			want:  []string{"0 @I1@ INDI\n1 NAME Ann"},
		},
		{
			name:  "indented level zero",
			input: "0 HEAD\n  0 TRLR",
			want:  []string{"0 HEAD", "  0 TRLR"},
		},
		{
			name:  "level ten is not level zero",
			input: "0 @I1@ INDI\n10 NOTE deep\n0 TRLR",
			want:  []string{"0 @I1@ INDI\n10 NOTE deep", "0 TRLR"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, scanAll(t, tt.input)); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecordScanner_LargeRecord(t *testing.T) {
	note := strings.Repeat("x", 200<<10)
	input := "0 @N1@ NOTE " + note + "\n0 TRLR\n"
	got := scanAll(t, input)
	if len(got) != 2 || got[0] != "0 @N1@ NOTE "+note {
		t.Errorf("large record not returned intact (got %d records)", len(got))
	}
}
