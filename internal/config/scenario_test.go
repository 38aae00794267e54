package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrica-io/fabrica/internal/spec"
)

const demoScenario = `
name: demo
steps:
  - generate:
      table: users
      rows: 1000
      resume: true
      columns:
        - name: id
          type: bigint
          generator: { kind: sequence, start: 1, step: 1 }
        - name: name
          type: string
          generator: { kind: randomString, length: 12 }
        - name: tier
          type: string
          nullable: true
          nullProbability: 0.1
          generator:
            kind: choice
            values: [free, pro, enterprise]
        - name: joined
          type: datetime
          generator:
            kind: datetime
            from: "2024-01-01"
            to: "2024-06-30 23:59:59"
      batches:
        - - kind: template
            column: name
            pattern: "user-{id}"
            lowercase: true
  - transform:
      table: users
      columns:
        - name: id
          type: bigint
          generator: { kind: sequence }
        - name: name
          type: string
          generator: { kind: randomString, length: 12 }
      batches:
        - - kind: mutate
            column: name
            probability: 0.05
            operations: [replace, delete]
        - - kind: swap
            column1: id
            column2: name
            probability: 0.02
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(demoScenario))
	require.NoError(t, err)

	assert.Equal(t, "demo", sc.Name)
	require.Len(t, sc.Steps, 2)

	gen, ok := sc.Steps[0].(spec.GenerateStep)
	require.True(t, ok)
	assert.Equal(t, "users", gen.Table.Name)
	assert.Equal(t, int64(1000), gen.Rows)
	assert.True(t, gen.Resume)
	require.Len(t, gen.Table.Columns, 4)

	assert.Equal(t, spec.Sequence{Start: 1, Step: 1}, gen.Table.Columns[0].Generator)
	assert.Equal(t, spec.RandomString{Length: 12}, gen.Table.Columns[1].Generator)

	tier := gen.Table.Columns[2]
	assert.True(t, tier.Nullable)
	assert.Equal(t, 0.1, tier.NullProbability)
	assert.Equal(t, spec.Choice{Values: []any{"free", "pro", "enterprise"}}, tier.Generator)

	joined := gen.Table.Columns[3].Generator.(spec.DatetimeRange)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), joined.From)
	assert.Equal(t, time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC), joined.To)

	require.Len(t, gen.Batches, 1)
	tpl := gen.Batches[0][0].(spec.Template)
	assert.Equal(t, "user-{id}", tpl.Pattern)
	assert.True(t, tpl.Lowercase)

	tr, ok := sc.Steps[1].(spec.TransformStep)
	require.True(t, ok)
	require.Len(t, tr.Batches, 2)
	mut := tr.Batches[0][0].(spec.Mutate)
	assert.Equal(t, []spec.MutateOp{spec.MutateReplace, spec.MutateDelete}, mut.Operations)
	sw := tr.Batches[1][0].(spec.Swap)
	assert.Equal(t, "id", sw.Column1)
}

func TestParseScenarioDefaultsSequence(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: d
steps:
  - generate:
      table: t
      rows: 1
      columns:
        - name: id
          type: bigint
          generator: { kind: sequence }
`))
	require.NoError(t, err)
	gen := sc.Steps[0].(spec.GenerateStep)
	assert.Equal(t, spec.Sequence{Start: 1, Step: 1}, gen.Table.Columns[0].Generator)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown generator kind",
			yaml: `
name: d
steps:
  - generate:
      table: t
      rows: 1
      columns:
        - name: c
          type: string
          generator: { kind: faker }
`,
			want: "unknown generator kind",
		},
		{
			name: "step with both keys",
			yaml: `
name: d
steps:
  - generate:
      table: t
      rows: 1
      columns:
        - name: c
          type: string
          generator: { kind: uuid }
    transform:
      table: t
`,
			want: "both generate and transform",
		},
		{
			name: "validation runs after decode",
			yaml: `
name: d
steps:
  - generate:
      table: t
      rows: 1
      columns:
        - name: c
          type: string
          generator: { kind: uuid }
      batches:
        - - kind: template
            column: missing
            pattern: x
`,
			want: "no column missing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
