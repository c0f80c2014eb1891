package macro

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"sndctl/internal/store"
)

// MaxParameters is the highest parameter position a macro may declare.
const MaxParameters = 12

// StepSeparator splits a macro definition into step templates.
const StepSeparator = " : "

var placeholderRe = regexp.MustCompile(`\{(\d{1,2})\}`)

// MissingParameterError reports a required macro argument that was neither
// supplied by the caller nor covered by a default.
type MissingParameterError struct {
	Position int
	Name     string
}

func (e *MissingParameterError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("missing argument %d (%s)", e.Position, e.Name)
	}
	return fmt.Sprintf("missing argument %d", e.Position)
}

// ExtraArgumentsError reports a macro run given more positional arguments
// than the macro declares.
type ExtraArgumentsError struct {
	Macro    string
	Declared int
	Supplied int
}

func (e *ExtraArgumentsError) Error() string {
	return fmt.Sprintf("macro %q takes at most %d arguments, got %d", e.Macro, e.Declared, e.Supplied)
}

// Step is one resolved speaker command.
type Step struct {
	Speaker string
	Action  string
	Args    []string
}

// SplitSteps returns the raw step templates of a definition, in order.
// An empty definition yields no steps.
func SplitSteps(definition string) []string {
	var steps []string
	for _, raw := range strings.Split(definition, StepSeparator) {
		if s := strings.TrimSpace(raw); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

// Validate checks a macro record's structural invariants: parameter
// positions unique and contiguous from 1, at most MaxParameters of them,
// every placeholder referencing a declared position, and every step
// naming at least a speaker and an action.
func Validate(m *store.Macro) error {
	if m.Name == "" {
		return fmt.Errorf("macro name is required")
	}
	if len(m.Parameters) > MaxParameters {
		return fmt.Errorf("macro %q declares %d parameters, max %d", m.Name, len(m.Parameters), MaxParameters)
	}

	positions := make([]int, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		positions = append(positions, p.Position)
	}
	sort.Ints(positions)
	for i, pos := range positions {
		if pos != i+1 {
			return fmt.Errorf("macro %q: parameter positions must be contiguous from 1, got %v", m.Name, positions)
		}
	}

	for i, step := range SplitSteps(m.Definition) {
		if len(strings.Fields(step)) < 2 {
			return fmt.Errorf("macro %q step %d: want \"speaker action [args...]\", got %q", m.Name, i+1, step)
		}
		for _, match := range placeholderRe.FindAllStringSubmatch(step, -1) {
			pos, _ := strconv.Atoi(match[1])
			if pos < 1 || pos > len(m.Parameters) {
				return fmt.Errorf("macro %q step %d: placeholder {%d} has no declared parameter", m.Name, i+1, pos)
			}
		}
	}
	return nil
}

// ResolveArgs merges caller-supplied arguments with parameter defaults into
// one value per declared position. Fails when the caller supplies more
// arguments than declared, or when a position has neither a supplied value
// nor a default.
func ResolveArgs(m *store.Macro, supplied []string) ([]string, error) {
	if len(supplied) > len(m.Parameters) {
		return nil, &ExtraArgumentsError{Macro: m.Name, Declared: len(m.Parameters), Supplied: len(supplied)}
	}

	byPosition := make(map[int]store.Parameter, len(m.Parameters))
	for _, p := range m.Parameters {
		byPosition[p.Position] = p
	}

	resolved := make([]string, len(m.Parameters))
	for pos := 1; pos <= len(m.Parameters); pos++ {
		param := byPosition[pos]
		if pos <= len(supplied) && supplied[pos-1] != "" {
			resolved[pos-1] = supplied[pos-1]
			continue
		}
		if param.Default == "" {
			return nil, &MissingParameterError{Position: pos, Name: param.Name}
		}
		resolved[pos-1] = param.Default
	}
	return resolved, nil
}

// Substitute replaces every placeholder in a step template with its resolved
// value. Repeated references to the same position substitute identically.
func Substitute(step string, resolved []string) string {
	return placeholderRe.ReplaceAllStringFunc(step, func(match string) string {
		pos, _ := strconv.Atoi(match[1 : len(match)-1])
		if pos >= 1 && pos <= len(resolved) {
			return resolved[pos-1]
		}
		return match
	})
}

// ParseStep splits a substituted step into speaker, action, and arguments.
func ParseStep(step string) (Step, error) {
	fields := strings.Fields(step)
	if len(fields) < 2 {
		return Step{}, fmt.Errorf("step %q: want \"speaker action [args...]\"", step)
	}
	return Step{Speaker: fields[0], Action: fields[1], Args: fields[2:]}, nil
}
