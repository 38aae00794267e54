package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateSegments(t *testing.T) {
	tests := []struct {
		pattern string
		want    []TemplateSegment
	}{
		{
			pattern: "{first}.{last}@example.com",
			want: []TemplateSegment{
				{Column: "first"},
				{Literal: "."},
				{Column: "last"},
				{Literal: "@example.com"},
			},
		},
		{
			pattern: "plain text",
			want:    []TemplateSegment{{Literal: "plain text"}},
		},
		{
			pattern: "broken {brace",
			want:    []TemplateSegment{{Literal: "broken {brace"}},
		},
		{
			pattern: "{only}",
			want:    []TemplateSegment{{Column: "only"}},
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Template{Pattern: tt.pattern}.Segments(), tt.pattern)
	}
}

func TestBatchValidate(t *testing.T) {
	tbl := validTable()

	ok := Batch{
		Template{Column: "name", Pattern: "user-{id}"},
		Swap{Column1: "id", Column2: "score", Probability: 0.5},
	}
	require.NoError(t, ok.Validate(tbl))

	t.Run("unknown column", func(t *testing.T) {
		b := Batch{Template{Column: "nope", Pattern: "x"}}
		assert.ErrorContains(t, b.Validate(tbl), "no column nope")
	})

	t.Run("double assignment", func(t *testing.T) {
		b := Batch{
			Template{Column: "name", Pattern: "a"},
			Mutate{Column: "name", Probability: 0.1, Operations: []MutateOp{MutateReplace}},
		}
		assert.ErrorContains(t, b.Validate(tbl), "more than one transformation")
	})

	t.Run("swap overlapping template", func(t *testing.T) {
		b := Batch{
			Template{Column: "name", Pattern: "a"},
			Swap{Column1: "name", Column2: "id", Probability: 0.5},
		}
		assert.Error(t, b.Validate(tbl))
	})
}

func TestTransformationValidate(t *testing.T) {
	assert.Error(t, Template{Column: "c"}.Validate())
	assert.Error(t, Mutate{Column: "c", Probability: 2, Operations: []MutateOp{MutateReplace}}.Validate())
	assert.Error(t, Mutate{Column: "c", Probability: 0.5}.Validate())
	assert.Error(t, Mutate{Column: "c", Probability: 0.5, Operations: []MutateOp{"upper"}}.Validate())
	assert.Error(t, Swap{Column1: "a", Column2: "a", Probability: 0.5}.Validate())
	assert.Error(t, Lookup{Column: "c"}.Validate())
	assert.NoError(t, Lookup{
		Column: "c", SourceTable: "s", SourceColumn: "v",
		MatchColumn: "k", SourceMatchColumn: "k",
	}.Validate())
}
