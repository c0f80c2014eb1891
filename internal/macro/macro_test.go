package macro

import (
	"errors"
	"testing"

	"sndctl/internal/store"
)

func TestSplitSteps(t *testing.T) {
	tests := []struct {
		name string
		def  string
		want int
	}{
		{"empty", "", 0},
		{"single", "Kitchen pause", 1},
		{"two", "Kitchen volume 20 : Kitchen play", 2},
		{"trailing separator", "Kitchen pause : ", 1},
		{"blank only", "   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitSteps(tt.def); len(got) != tt.want {
				t.Errorf("SplitSteps(%q) = %v, want %d steps", tt.def, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := &store.Macro{
		Name:       "m",
		Definition: "speaker1 volume {1} : speaker1 play_fav {2}",
		Parameters: []store.Parameter{
			{Position: 1, Name: "volume", Default: "20"},
			{Position: 2, Name: "favorite"},
		},
	}
	if err := Validate(valid); err != nil {
		t.Fatalf("valid macro rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		macro *store.Macro
	}{
		{"no name", &store.Macro{Definition: "a pause"}},
		{"undeclared placeholder", &store.Macro{
			Name:       "m",
			Definition: "speaker1 volume {2}",
			Parameters: []store.Parameter{{Position: 1}},
		}},
		{"gap in positions", &store.Macro{
			Name:       "m",
			Definition: "speaker1 pause",
			Parameters: []store.Parameter{{Position: 1}, {Position: 3}},
		}},
		{"duplicate position", &store.Macro{
			Name:       "m",
			Definition: "speaker1 pause",
			Parameters: []store.Parameter{{Position: 1}, {Position: 1}},
		}},
		{"position zero", &store.Macro{
			Name:       "m",
			Definition: "speaker1 pause",
			Parameters: []store.Parameter{{Position: 0}},
		}},
		{"step missing action", &store.Macro{
			Name:       "m",
			Definition: "speaker1",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.macro); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateTooManyParameters(t *testing.T) {
	m := &store.Macro{Name: "m", Definition: "speaker1 pause"}
	for i := 1; i <= MaxParameters+1; i++ {
		m.Parameters = append(m.Parameters, store.Parameter{Position: i})
	}
	if err := Validate(m); err == nil {
		t.Error("expected error for 13 parameters, got nil")
	}
}

func TestResolveArgsDefaults(t *testing.T) {
	m := &store.Macro{
		Name: "m",
		Parameters: []store.Parameter{
			{Position: 1, Name: "volume", Default: "20"},
		},
	}

	got, err := ResolveArgs(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "20" {
		t.Errorf("resolved = %v, want [20]", got)
	}
}

func TestResolveArgsSuppliedWins(t *testing.T) {
	m := &store.Macro{
		Name: "m",
		Parameters: []store.Parameter{
			{Position: 1, Name: "volume", Default: "20"},
		},
	}

	got, err := ResolveArgs(m, []string{"50"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "50" {
		t.Errorf("resolved = %v, want [50]", got)
	}
}

func TestResolveArgsMissing(t *testing.T) {
	m := &store.Macro{
		Name: "m",
		Parameters: []store.Parameter{
			{Position: 1, Name: "volume", Default: "20"},
			{Position: 2, Name: "favorite"},
		},
	}

	_, err := ResolveArgs(m, []string{"50"})
	var missing *MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingParameterError", err)
	}
	if missing.Position != 2 || missing.Name != "favorite" {
		t.Errorf("missing = %+v", missing)
	}
}

func TestResolveArgsEmptyStringFallsBackToDefault(t *testing.T) {
	m := &store.Macro{
		Name: "m",
		Parameters: []store.Parameter{
			{Position: 1, Name: "volume", Default: "20"},
		},
	}

	got, err := ResolveArgs(m, []string{""})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "20" {
		t.Errorf("resolved = %v, want [20]", got)
	}
}

func TestResolveArgsTooMany(t *testing.T) {
	m := &store.Macro{
		Name:       "m",
		Parameters: []store.Parameter{{Position: 1, Default: "20"}},
	}

	_, err := ResolveArgs(m, []string{"a", "b"})
	var extra *ExtraArgumentsError
	if !errors.As(err, &extra) {
		t.Fatalf("err = %v, want *ExtraArgumentsError", err)
	}
	if extra.Declared != 1 || extra.Supplied != 2 {
		t.Errorf("extra = %+v, want Declared 1 Supplied 2", extra)
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		step     string
		resolved []string
		want     string
	}{
		{"single", "speaker1 volume {1}", []string{"50"}, "speaker1 volume 50"},
		{"two positions", "{1} volume {2}", []string{"Kitchen", "30"}, "Kitchen volume 30"},
		{"repeated position", "speaker1 sleep {1} {1}", []string{"30"}, "speaker1 sleep 30 30"},
		{"no placeholders", "speaker1 pause", nil, "speaker1 pause"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.step, tt.resolved); got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.step, got, tt.want)
			}
		})
	}
}

func TestParseStep(t *testing.T) {
	step, err := ParseStep("Kitchen play_fav Morning Jazz")
	if err != nil {
		t.Fatal(err)
	}
	if step.Speaker != "Kitchen" || step.Action != "play_fav" {
		t.Errorf("step = %+v", step)
	}
	if len(step.Args) != 2 || step.Args[0] != "Morning" {
		t.Errorf("args = %v", step.Args)
	}

	if _, err := ParseStep("Kitchen"); err == nil {
		t.Error("expected error for step without action")
	}
}
