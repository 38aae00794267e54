package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrica-io/fabrica/internal/spec"
)

func TestStripTransformations(t *testing.T) {
	tbl := spec.Table{
		Name: "users",
		Columns: []spec.Column{
			{Name: "id", Type: spec.TypeBigint, Generator: spec.Sequence{Start: 1, Step: 1}},
			{Name: "name", Type: spec.TypeString, Generator: spec.RandomString{Length: 8}},
		},
	}

	sc := spec.Scenario{Name: "demo", Steps: []spec.Step{
		spec.GenerateStep{Table: tbl, Rows: 10, Batches: []spec.Batch{
			{spec.Template{Column: "name", Pattern: "u-{id}"}},
		}},
		spec.TransformStep{Table: tbl, Batches: []spec.Batch{
			{spec.Swap{Column1: "id", Column2: "name", Probability: 0.1}},
		}},
	}}

	out := stripTransformations(sc)
	require.Len(t, out.Steps, 1)
	gen, ok := out.Steps[0].(spec.GenerateStep)
	require.True(t, ok)
	assert.Empty(t, gen.Batches)
	assert.Equal(t, int64(10), gen.Rows)
}

func TestGenerateWithOnlyTransformStepsIsANoOp(t *testing.T) {
	tbl := spec.Table{
		Name: "users",
		Columns: []spec.Column{
			{Name: "name", Type: spec.TypeString, Generator: spec.RandomString{Length: 8}},
		},
	}

	sc := spec.Scenario{Name: "degrade-only", Steps: []spec.Step{
		spec.TransformStep{Table: tbl, Batches: []spec.Batch{
			{spec.Template{Column: "name", Pattern: "x"}},
		}},
	}}

	// a valid scenario with nothing to fabricate succeeds without connecting
	assert.NoError(t, runGenerate(context.Background(), sc))
}
