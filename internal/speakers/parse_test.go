package speakers

import (
	"reflect"
	"testing"
)

func TestParseNumberedList(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []ListItem
	}{
		{
			name:   "plain list",
			output: "1: Morning Jazz\n2: Radio Paradise\n3: Dinner Mix\n",
			want: []ListItem{
				{Number: 1, Name: "Morning Jazz"},
				{Number: 2, Name: "Radio Paradise"},
				{Number: 3, Name: "Dinner Mix"},
			},
		},
		{
			name:   "status words skipped",
			output: "playing\n1: Morning Jazz\noff\n",
			want:   []ListItem{{Number: 1, Name: "Morning Jazz"}},
		},
		{
			name:   "unnumbered lines skipped",
			output: "Favorites:\n1: Morning Jazz\nnot a list line\n",
			want:   []ListItem{{Number: 1, Name: "Morning Jazz"}},
		},
		{
			name:   "name containing colon kept whole after number",
			output: "1: Now: The Hits\n",
			want:   []ListItem{{Number: 1, Name: "Now: The Hits"}},
		},
		{
			name:   "empty output",
			output: "",
			want:   nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseNumberedList(tc.output)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseNumberedList() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseQueue(t *testing.T) {
	output := "  1: Artist: Miles Davis | Album: Kind of Blue | Title: So What\n" +
		" *2: Artist: John Coltrane | Album: Blue Train | Title: Moment's Notice\n" +
		"  3: Just A Title Line\n"
	got := ParseQueue(output)
	want := []QueueItem{
		{Number: 1, Artist: "Miles Davis", Album: "Kind of Blue", Title: "So What"},
		{Number: 2, Artist: "John Coltrane", Album: "Blue Train", Title: "Moment's Notice", IsCurrent: true},
		{Number: 3, Title: "Just A Title Line"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseQueue() = %#v, want %#v", got, want)
	}
}

func TestParseQueueCurrentMarkerArrow(t *testing.T) {
	got := ParseQueue("*> 4: Artist: Nina Simone | Album: Pastel Blues | Title: Sinnerman\n")
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if !got[0].IsCurrent {
		t.Error("expected arrow-marked entry to be current")
	}
	if got[0].Number != 4 || got[0].Title != "Sinnerman" {
		t.Errorf("unexpected entry %#v", got[0])
	}
}
