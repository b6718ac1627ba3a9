package textclean

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "smart quotes and dashes",
			in:   "“What’s that?” asked Chris — pointing.",
			want: `"What's that?" asked Chris - pointing.`,
		},
		{
			name: "nfkc",
			in:   "ﬁsh and chips…",
			want: "fish and chips...",
		},
		{
			name: "whitespace and empty lines",
			in:   "  MARTIN:   Let's   go!  \r\n\r\n\t\tAVIVA:\tReady.  \n   \n",
			want: "MARTIN: Let's go!\nAVIVA: Ready.",
		},
		{
			name: "page numbers",
			in:   "INT. TORTUGA\n12\nPage 3\npage 4 of 40\n5/40\n- 7 -\nScene 12 begins",
			want: "INT. TORTUGA\nScene 12 begins",
		},
		{
			name: "empty",
			in:   " \n\n ",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsPageNumber(t *testing.T) {
	for line, want := range map[string]bool{
		"1":           true,
		"PAGE 10":     true,
		"10 of 12":    true,
		"- 3 -":       true,
		"1. Intro":    false,
		"Act 2":       false,
		"2 creatures": false,
	} {
		if got := IsPageNumber(line); got != want {
			t.Errorf("IsPageNumber(%q) = %v, want %v", line, got, want)
		}
	}
}
