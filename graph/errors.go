//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckpointNotFound is returned when a lineage has no checkpoint.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrLineageIDRequired is returned when a lineage id is empty.
	ErrLineageIDRequired = errors.New("lineage_id is required")
	// ErrStepExecutionFailed marks a failure raised while running a step.
	ErrStepExecutionFailed = errors.New("step execution failed")
	// ErrMaxStepsExceeded is returned when a run does not halt within the step limit.
	ErrMaxStepsExceeded = errors.New("maximum execution steps exceeded")
	// ErrExecutorBusy is returned when the worker pool cannot accept another run.
	ErrExecutorBusy = errors.New("executor is busy")
)

// StepError reports a step that failed. The checkpoint of the lineage
// stays at the last step that committed.
type StepError struct {
	// NodeID is the node that failed.
	NodeID string
	// Step is the step number the node would have committed.
	Step int
	// Err is the underlying failure.
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: node %s (step %d): %v", ErrStepExecutionFailed, e.NodeID, e.Step, e.Err)
}

// Unwrap exposes both the step failure kind and the cause.
func (e *StepError) Unwrap() []error {
	return []error{ErrStepExecutionFailed, e.Err}
}
