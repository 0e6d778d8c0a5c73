package store

import "testing"

func TestCollectionNameFor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Fall Picnic!", "rsvps-fall-picnic"},
		{"  Multi   Space ", "rsvps-multi-space"},
		{"Summer BBQ 2025", "rsvps-summer-bbq-2025"},
		{"New Year's Eve", "rsvps-new-years-eve"},
		{"--weird--name--", "rsvps-weirdname"},
		{"ALLCAPS", "rsvps-allcaps"},
		{"!!!", "rsvps-"},
	}

	for _, c := range cases {
		if got := CollectionNameFor(c.in); got != c.want {
			t.Errorf("CollectionNameFor(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDegenerateCollectionName(t *testing.T) {
	if !DegenerateCollectionName(CollectionNameFor("!!!")) {
		t.Fatal("expected all-punctuation name to be degenerate")
	}
	if DegenerateCollectionName(CollectionNameFor("Fall Picnic")) {
		t.Fatal("did not expect a normal name to be degenerate")
	}
}
