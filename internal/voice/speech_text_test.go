package voice

import "testing"

func TestSpokenText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain question unchanged",
			in:   "Have you reported road issues to authorities before?",
			want: "Have you reported road issues to authorities before?",
		},
		{
			name: "drops emphasis markers",
			in:   "How would you rate the **overall** condition of roads?",
			want: "How would you rate the overall condition of roads?",
		},
		{
			name: "keeps link label",
			in:   "See the [city portal](https://example.com/roads) for details.",
			want: "See the city portal for details.",
		},
		{
			name: "spells out connectives",
			in:   "Potholes & cracks / uneven surfaces",
			want: "Potholes and cracks or uneven surfaces",
		},
		{
			name: "collapses whitespace and emoji",
			in:   "  Thank you!  \n\t🚗 Drive safe .",
			want: "Thank you! Drive safe.",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := spokenText(tc.in); got != tc.want {
				t.Fatalf("spokenText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
