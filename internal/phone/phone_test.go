package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"6135550147", "6135550147"},
		{"+1 (613) 555-0147", "6135550147"},
		{"+16135550147", "6135550147"},
		{"1-613-555-0147", "6135550147"},
		{"613.555.0147", "6135550147"},
		// 11 digits not starting with 1: passed through untouched
		{"26135550147", "26135550147"},
		// short and long numbers are not validated here
		{"5550147", "5550147"},
		{"+44 20 7946 0958 demo ext 12345", "44207946095812345"},
		{"no digits at all", ""},
	}

	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"", "+1 (613) 555-0147", "6135550147", "1 613 555 0147",
		"26135550147", "abc", "+44 20 7946 0958",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}
