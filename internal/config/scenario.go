package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fabrica-io/fabrica/internal/spec"
)

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (spec.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spec.Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return spec.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes a YAML scenario document.
func ParseScenario(data []byte) (spec.Scenario, error) {
	var doc scenarioDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return spec.Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	sc, err := doc.toScenario()
	if err != nil {
		return spec.Scenario{}, err
	}
	if err := sc.Validate(); err != nil {
		return spec.Scenario{}, err
	}
	return sc, nil
}

type scenarioDoc struct {
	Name  string    `yaml:"name"`
	Steps []stepDoc `yaml:"steps"`
}

// stepDoc carries exactly one of its two keys.
type stepDoc struct {
	Generate  *generateDoc  `yaml:"generate"`
	Transform *transformDoc `yaml:"transform"`
}

type generateDoc struct {
	Table   string        `yaml:"table"`
	Rows    int64         `yaml:"rows"`
	Resume  bool          `yaml:"resume"`
	Columns []columnDoc   `yaml:"columns"`
	Batches [][]transfDoc `yaml:"batches"`
}

type transformDoc struct {
	Table   string        `yaml:"table"`
	Columns []columnDoc   `yaml:"columns"`
	Batches [][]transfDoc `yaml:"batches"`
}

type columnDoc struct {
	Name            string  `yaml:"name"`
	Type            string  `yaml:"type"`
	Nullable        bool    `yaml:"nullable"`
	NullProbability float64 `yaml:"nullProbability"`
	Generator       genDoc  `yaml:"generator"`
}

// genDoc is the tagged union of every generator kind; Kind picks the arm.
type genDoc struct {
	Kind      string  `yaml:"kind"`
	Start     *int64  `yaml:"start"`
	Step      *int64  `yaml:"step"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Precision int     `yaml:"precision"`
	Length    int     `yaml:"length"`
	Values    []any   `yaml:"values"`
	Value     any     `yaml:"value"`
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
}

// transfDoc is the tagged union of every transformation kind.
type transfDoc struct {
	Kind              string   `yaml:"kind"`
	Column            string   `yaml:"column"`
	Pattern           string   `yaml:"pattern"`
	Lowercase         bool     `yaml:"lowercase"`
	Probability       float64  `yaml:"probability"`
	Operations        []string `yaml:"operations"`
	SourceTable       string   `yaml:"sourceTable"`
	SourceColumn      string   `yaml:"sourceColumn"`
	MatchColumn       string   `yaml:"matchColumn"`
	SourceMatchColumn string   `yaml:"sourceMatchColumn"`
	Column1           string   `yaml:"column1"`
	Column2           string   `yaml:"column2"`
}

func (d scenarioDoc) toScenario() (spec.Scenario, error) {
	sc := spec.Scenario{Name: d.Name}
	for i, s := range d.Steps {
		step, err := s.toStep()
		if err != nil {
			return sc, fmt.Errorf("step %d: %w", i+1, err)
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}

func (d stepDoc) toStep() (spec.Step, error) {
	switch {
	case d.Generate != nil && d.Transform != nil:
		return nil, fmt.Errorf("step declares both generate and transform")
	case d.Generate != nil:
		t, err := toTable(d.Generate.Table, d.Generate.Columns)
		if err != nil {
			return nil, err
		}
		batches, err := toBatches(d.Generate.Batches)
		if err != nil {
			return nil, err
		}
		return spec.GenerateStep{
			Table:   t,
			Rows:    d.Generate.Rows,
			Resume:  d.Generate.Resume,
			Batches: batches,
		}, nil
	case d.Transform != nil:
		t, err := toTable(d.Transform.Table, d.Transform.Columns)
		if err != nil {
			return nil, err
		}
		batches, err := toBatches(d.Transform.Batches)
		if err != nil {
			return nil, err
		}
		return spec.TransformStep{Table: t, Batches: batches}, nil
	default:
		return nil, fmt.Errorf("step declares neither generate nor transform")
	}
}

func toTable(name string, cols []columnDoc) (spec.Table, error) {
	t := spec.Table{Name: name}
	for _, c := range cols {
		gen, err := c.Generator.toGenerator()
		if err != nil {
			return t, fmt.Errorf("column %s: %w", c.Name, err)
		}
		t.Columns = append(t.Columns, spec.Column{
			Name:            c.Name,
			Type:            spec.ColumnType(c.Type),
			Generator:       gen,
			Nullable:        c.Nullable,
			NullProbability: c.NullProbability,
		})
	}
	return t, nil
}

func toBatches(docs [][]transfDoc) ([]spec.Batch, error) {
	var batches []spec.Batch
	for i, bd := range docs {
		var b spec.Batch
		for _, td := range bd {
			tr, err := td.toTransformation()
			if err != nil {
				return nil, fmt.Errorf("batch %d: %w", i+1, err)
			}
			b = append(b, tr)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (d genDoc) toGenerator() (spec.Generator, error) {
	switch d.Kind {
	case "sequence":
		start, step := int64(1), int64(1)
		if d.Start != nil {
			start = *d.Start
		}
		if d.Step != nil {
			step = *d.Step
		}
		return spec.Sequence{Start: start, Step: step}, nil
	case "randomInt":
		return spec.RandomInt{Min: int64(d.Min), Max: int64(d.Max)}, nil
	case "randomFloat":
		return spec.RandomFloat{Min: d.Min, Max: d.Max, Precision: d.Precision}, nil
	case "randomString":
		return spec.RandomString{Length: d.Length}, nil
	case "choice":
		return spec.Choice{Values: d.Values}, nil
	case "choiceByLookup":
		return spec.ChoiceByLookup{Values: d.Values}, nil
	case "constant":
		return spec.Constant{Value: d.Value}, nil
	case "datetime":
		from, err := parseTime(d.From)
		if err != nil {
			return nil, fmt.Errorf("datetime from: %w", err)
		}
		to, err := parseTime(d.To)
		if err != nil {
			return nil, fmt.Errorf("datetime to: %w", err)
		}
		return spec.DatetimeRange{From: from, To: to}, nil
	case "uuid":
		return spec.UUID{}, nil
	case "":
		return nil, fmt.Errorf("generator has no kind")
	default:
		return nil, fmt.Errorf("unknown generator kind %q", d.Kind)
	}
}

func (d transfDoc) toTransformation() (spec.Transformation, error) {
	switch d.Kind {
	case "template":
		return spec.Template{Column: d.Column, Pattern: d.Pattern, Lowercase: d.Lowercase}, nil
	case "mutate":
		ops := make([]spec.MutateOp, len(d.Operations))
		for i, op := range d.Operations {
			ops[i] = spec.MutateOp(op)
		}
		return spec.Mutate{Column: d.Column, Probability: d.Probability, Operations: ops}, nil
	case "lookup":
		return spec.Lookup{
			Column:            d.Column,
			SourceTable:       d.SourceTable,
			SourceColumn:      d.SourceColumn,
			MatchColumn:       d.MatchColumn,
			SourceMatchColumn: d.SourceMatchColumn,
		}, nil
	case "swap":
		return spec.Swap{Column1: d.Column1, Column2: d.Column2, Probability: d.Probability}, nil
	case "":
		return nil, fmt.Errorf("transformation has no kind")
	default:
		return nil, fmt.Errorf("unknown transformation kind %q", d.Kind)
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}
