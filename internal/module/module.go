// Package module defines the computation interface the fabric executes.
// A module registers under a capability name and is resolved by lookup;
// the core treats the computation itself as opaque. Modules move their own
// data: the input handle yields locators, the output handle records what
// was produced.
package module

import (
	"context"
	"fmt"
)

// Module is one user-supplied computation. Map runs against a shard of
// input; Reduce folds grouped values for a key. Modules only needing one
// side return nil from the other.
type Module interface {
	Name() string
	Map(ctx context.Context, in *Input, out *Output) error
	Reduce(ctx context.Context, key string, in *Input, out *Output) error
}

// Input is the read-only handle for one task attempt.
type Input struct {
	TaskID        string
	JobID         string
	Config        map[string]string
	MemoryLimitMB int

	refs []string
	pos  int
}

func NewInput(taskID, jobID string, refs []string, config map[string]string, memoryLimitMB int) *Input {
	return &Input{
		TaskID:        taskID,
		JobID:         jobID,
		Config:        config,
		MemoryLimitMB: memoryLimitMB,
		refs:          refs,
	}
}

// Refs returns every input locator of the task.
func (in *Input) Refs() []string { return in.refs }

// HasNext reports whether Next will yield another locator.
func (in *Input) HasNext() bool { return in.pos < len(in.refs) }

// Next yields input locators in order.
func (in *Input) Next() (string, bool) {
	if in.pos >= len(in.refs) {
		return "", false
	}
	ref := in.refs[in.pos]
	in.pos++
	return ref, true
}

// Param reads a config value with a fallback.
func (in *Input) Param(key, def string) string {
	if v, ok := in.Config[key]; ok {
		return v
	}
	return def
}

// Output is the write-only handle for one task attempt. Emissions are
// keyed intermediate records; Result names the locator the module stored
// its output under.
type Output struct {
	ref       string
	emissions map[string][]string
}

func NewOutput(defaultRef string) *Output {
	return &Output{
		ref:       defaultRef,
		emissions: make(map[string][]string),
	}
}

// Emit records a keyed intermediate value.
func (out *Output) Emit(key, value string) {
	out.emissions[key] = append(out.emissions[key], value)
}

// Emissions returns everything emitted so far.
func (out *Output) Emissions() map[string][]string { return out.emissions }

// SetResult overrides the output locator reported to the coordinator.
func (out *Output) SetResult(ref string) { out.ref = ref }

// Result is the locator reported on completion.
func (out *Output) Result() string { return out.ref }

// Error values modules return for unsupported operations.
func ErrUnsupported(name string, op string) error {
	return fmt.Errorf("module %s does not implement %s", name, op)
}
