package filter

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bruggerl/clara/pkg/runtime"
)

// Test suites travel as YAML next to the programs they check:
//
//	entry: main
//	tests:
//	  - args: [5]
//	    ret: 120
//	  - ins: [1, 2]
//	    out: "3"
//
// Omitted `out`/`ret` skip the respective check.

// Suite is a decoded test suite.
type Suite struct {
	Entry string
	Tests []Test
}

type suiteDoc struct {
	Entry string    `yaml:"entry"`
	Tests []testDoc `yaml:"tests"`
}

// Values are decoded from raw yaml.Node fields rather than through a custom
// unmarshaler: yaml.v3 skips unmarshalers for null nodes, and it only fills
// yaml.Node fields held by value. A zero Kind marks an absent field.
type testDoc struct {
	Ins  []yaml.Node `yaml:"ins,omitempty"`
	Args []yaml.Node `yaml:"args,omitempty"`
	Out  *string     `yaml:"out,omitempty"`
	Ret  yaml.Node   `yaml:"ret,omitempty"`
}

func decodeValue(node *yaml.Node) (runtime.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!int":
			var n int64
			if err := node.Decode(&n); err != nil {
				return nil, err
			}
			return runtime.IntValue{Val: n}, nil
		case "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return nil, err
			}
			return runtime.FloatValue{Val: f}, nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return nil, err
			}
			return runtime.BoolValue{Val: b}, nil
		case "!!str":
			return runtime.StringValue{Val: node.Value}, nil
		case "!!null":
			return runtime.Unset, nil
		}
	case yaml.SequenceNode:
		elems := make([]runtime.Value, len(node.Content))
		for i, c := range node.Content {
			v, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &runtime.ArrayValue{Elems: elems}, nil
	}
	return nil, fmt.Errorf("cannot decode value at line %d (tag %s)", node.Line, node.Tag)
}

// DecodeSuite parses a YAML test-suite document.
func DecodeSuite(data []byte) (*Suite, error) {
	var doc suiteDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	suite := &Suite{Entry: doc.Entry}
	if suite.Entry == "" {
		suite.Entry = "main"
	}
	for i, td := range doc.Tests {
		test := Test{Out: td.Out}
		for j := range td.Ins {
			v, err := decodeValue(&td.Ins[j])
			if err != nil {
				return nil, fmt.Errorf("test %d ins: %w", i+1, err)
			}
			test.Ins = append(test.Ins, v)
		}
		for j := range td.Args {
			v, err := decodeValue(&td.Args[j])
			if err != nil {
				return nil, fmt.Errorf("test %d args: %w", i+1, err)
			}
			test.Args = append(test.Args, v)
		}
		if td.Ret.Kind != 0 {
			v, err := decodeValue(&td.Ret)
			if err != nil {
				return nil, fmt.Errorf("test %d ret: %w", i+1, err)
			}
			test.Ret = v
		}
		suite.Tests = append(suite.Tests, test)
	}
	return suite, nil
}
