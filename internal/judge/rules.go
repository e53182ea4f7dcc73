package judge

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/factbase/internal/fact"
)

// RuleFile is the YAML form of an award:
//
//	name: issue
//	rules:
//	  - kind: const
//	    points: 20
//	    because: basis
//	  - kind: linear
//	    x: hoc
//	    k: 0.1
//	    min: 5
//	    max: 40
//	    because: hoc
//
// Numeric fields take a number or the name of a variable supplied to
// Build. The if field takes a boolean or a variable; a variable is true
// when non-zero.
type RuleFile struct {
	// Name identifies the award in logs and output.
	Name string `yaml:"name"`

	// Rules are evaluated in order.
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule of a RuleFile.
type RuleSpec struct {
	Kind    string   `yaml:"kind"`
	Points  *Operand `yaml:"points,omitempty"`
	X       *Operand `yaml:"x,omitempty"`
	K       *Operand `yaml:"k,omitempty"`
	If      *Operand `yaml:"if,omitempty"`
	Min     *Operand `yaml:"min,omitempty"`
	Max     *Operand `yaml:"max,omitempty"`
	Gate    *Operand `yaml:"gate,omitempty"`
	Because string   `yaml:"because"`
}

// Operand is a literal number or a variable reference.
type Operand struct {
	Num float64
	Var string
}

// UnmarshalYAML accepts numbers, booleans and variable names.
func (o *Operand) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number or variable name", node.Line)
	}
	switch node.Tag {
	case "!!int", "!!float":
		n, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		o.Num = n
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if b {
			o.Num = 1
		}
	case "!!str":
		if !fact.ValidName(node.Value) {
			return fmt.Errorf("line %d: invalid variable name %q", node.Line, node.Value)
		}
		o.Var = node.Value
	default:
		return fmt.Errorf("line %d: unsupported operand %s", node.Line, node.Tag)
	}
	return nil
}

// Eval resolves the operand against vars.
func (o *Operand) Eval(vars map[string]float64) (float64, error) {
	if o.Var == "" {
		return o.Num, nil
	}
	v, ok := vars[o.Var]
	if !ok {
		return 0, fmt.Errorf("variable %q is not set", o.Var)
	}
	return v, nil
}

// LoadRules reads and parses a rule file.
func LoadRules(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses a rule file, rejecting unknown fields.
func ParseRules(data []byte) (*RuleFile, error) {
	var rf RuleFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := rf.validate(); err != nil {
		return nil, fmt.Errorf("invalid rule file: %w", err)
	}
	// because is display text, kept in NFC
	for i := range rf.Rules {
		rf.Rules[i].Because = string(fact.NFC(rf.Rules[i].Because))
	}
	return &rf, nil
}

func (rf *RuleFile) validate() error {
	if len(rf.Rules) == 0 {
		return fmt.Errorf("no rules")
	}
	for i, r := range rf.Rules {
		if r.Because == "" {
			return fmt.Errorf("rule %d: because is required", i)
		}
		switch r.Kind {
		case "const", "at_most", "at_least":
			if r.Points == nil {
				return fmt.Errorf("rule %d (%s): points is required", i, r.Kind)
			}
		case "linear":
			if r.X == nil || r.K == nil {
				return fmt.Errorf("rule %d (linear): x and k are required", i)
			}
		default:
			return fmt.Errorf("rule %d: unknown kind %q", i, r.Kind)
		}
	}
	return nil
}

// Vars returns the sorted variable names the file refers to.
func (rf *RuleFile) Vars() []string {
	seen := map[string]bool{}
	for _, r := range rf.Rules {
		for _, o := range []*Operand{r.Points, r.X, r.K, r.If, r.Min, r.Max, r.Gate} {
			if o != nil && o.Var != "" {
				seen[o.Var] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Build resolves variables and returns the rules ready for Award.
func (rf *RuleFile) Build(vars map[string]float64) ([]Rule, error) {
	rules := make([]Rule, 0, len(rf.Rules))
	for i, spec := range rf.Rules {
		r, err := spec.build(vars)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, spec.Because, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (s RuleSpec) build(vars map[string]float64) (Rule, error) {
	eval := func(o *Operand) (float64, error) {
		if o == nil {
			return 0, nil
		}
		return o.Eval(vars)
	}

	var r Rule
	switch s.Kind {
	case "linear":
		x, err := eval(s.X)
		if err != nil {
			return r, err
		}
		k, err := eval(s.K)
		if err != nil {
			return r, err
		}
		r = Linear(x, k, s.Because)
	default:
		p, err := eval(s.Points)
		if err != nil {
			return r, err
		}
		switch s.Kind {
		case "const":
			r = Const(p, s.Because)
		case "at_most":
			r = AtMost(p, s.Because)
		default:
			r = AtLeast(p, s.Because)
		}
	}

	if s.If != nil {
		cond, err := eval(s.If)
		if err != nil {
			return r, err
		}
		r = r.When(cond != 0)
	}
	for _, m := range []struct {
		o     *Operand
		apply func(Rule, float64) Rule
	}{
		{s.Min, Rule.Min},
		{s.Max, Rule.Max},
		{s.Gate, Rule.Gate},
	} {
		if m.o == nil {
			continue
		}
		v, err := eval(m.o)
		if err != nil {
			return r, err
		}
		r = m.apply(r, v)
	}
	return r, nil
}
