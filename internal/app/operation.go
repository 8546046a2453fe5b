package app

// Run statuses recorded in the index.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks the CLI command being run. Operations start in memory
// with ID=0; only mutating commands (backup, restore, clean) persist them
// to the index, which assigns the ID.
type Operation struct {
	ID         int64
	RunID      string
	Command    string
	Parameters string
	Status     string
}

// NewOperation creates an in-memory operation that succeeds unless Fail
// is called.
func NewOperation(runID, command string) *Operation {
	return &Operation{
		RunID:   runID,
		Command: command,
		Status:  StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the index.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = StatusError
	}
	return err
}
