package gedcom

import "testing"

func TestSoundexStd(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Tymczak", "T522"},
		{"Pfister", "P236"},
		{"Ashcraft", "A226"},
		{"Müller", "M460"},
		{"New York", "N000:Y620:N620"},
		{"Smith Smith", "S530:S532"},
		{"", ""},
		{"123", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SoundexStd(tt.input); got != tt.want {
				t.Errorf("SoundexStd(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSoundexDM(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Peters", "739400:734000"},
		{"Peterson", "739460:734600"},
		{"Moskowitz", "645740"},
		{"Auerbach", "097500:097400"},
		{"Jackson", "154600:454600:145460:445460"},
		{"Cohen", "556000:456000"},
		{"Müller", "689000"},
		{"New York", "670000:195000:679500"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SoundexDM(tt.input); got != tt.want {
				t.Errorf("SoundexDM(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSoundex_CodeLimit(t *testing.T) {
	var words string
	for c := 'A'; c <= 'Z'; c++ {
		for _, d := range "BDFGKLMNPRST" {
			words += string(c) + string(d) + "AX "
		}
	}
	if got := len(splitCodes(SoundexStd(words))); got != maxStdCodes {
		t.Errorf("std codes = %d, want %d", got, maxStdCodes)
	}
	if got := len(splitCodes(SoundexDM(words))); got > maxDMCodes {
		t.Errorf("dm codes = %d, want at most %d", got, maxDMCodes)
	}
}

func splitCodes(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ':' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
