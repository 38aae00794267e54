package spec

import "fmt"

// Step is one entry of a scenario: either generate-then-transform or
// transform-only against a table assumed to exist.
type Step interface {
	// TableName names the table the step touches.
	TableName() string
	Validate() error

	isStep()
}

// GenerateStep fabricates Rows rows into Table and then runs the declared
// transformation batches, in order.
type GenerateStep struct {
	Table   Table
	Rows    int64
	Resume  bool
	Batches []Batch
}

// TransformStep runs transformation batches against an existing table. The
// full table spec is still required: the table-replacement protocol needs
// the column list to rebuild the table structure.
type TransformStep struct {
	Table   Table
	Batches []Batch
}

func (GenerateStep) isStep()  {}
func (TransformStep) isStep() {}

func (s GenerateStep) TableName() string  { return s.Table.Name }
func (s TransformStep) TableName() string { return s.Table.Name }

func (s GenerateStep) Validate() error {
	if err := s.Table.Validate(); err != nil {
		return err
	}
	if s.Rows < 0 {
		return fmt.Errorf("table %s: negative row count %d", s.Table.Name, s.Rows)
	}
	for _, b := range s.Batches {
		if err := b.Validate(s.Table); err != nil {
			return err
		}
	}
	return nil
}

func (s TransformStep) Validate() error {
	if err := s.Table.Validate(); err != nil {
		return err
	}
	if len(s.Batches) == 0 {
		return fmt.Errorf("transform step for %s declares no batches", s.Table.Name)
	}
	for _, b := range s.Batches {
		if err := b.Validate(s.Table); err != nil {
			return err
		}
	}
	return nil
}

// Scenario is an ordered list of steps replayed top to bottom. Later steps
// may depend on earlier tables' committed contents (cross-table lookups);
// there is no cross-step transactionality.
type Scenario struct {
	Name  string
	Steps []Step
}

func (s Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, st := range s.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}
