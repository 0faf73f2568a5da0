package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports an inconsistent model definition detected while
	// building or evaluating a Source.
	ErrConfig = errors.New("model configuration error")

	// ErrMissingDependency reports a block whose declared dependency has not
	// been computed by an earlier block.
	ErrMissingDependency = errors.New("dependency not computed")

	// ErrUnsupportedRank reports a contraction between tensors whose rank
	// pair has no contraction rule.
	ErrUnsupportedRank = errors.New("unsupported contraction ranks")

	// ErrNoFinalResult reports that no result indexed purely by the final
	// dimensions remained after all contractions.
	ErrNoFinalResult = errors.New("no final-dimension result")

	// ErrContract reports a block that violated a post-condition of the
	// Block contract.
	ErrContract = errors.New("block contract violation")

	// ErrUnknownParameter reports a parameter name no model function uses.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrNoData reports an operation that needs an event table before
	// SetData was called.
	ErrNoData = errors.New("no data set")
)

// ContractError attributes a contract violation to a block and phase.
type ContractError struct {
	Block string
	Phase string // "compute", "simulate", "annotate"
	Msg   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s of %s: %s", e.Phase, e.Block, e.Msg)
}

func (e *ContractError) Unwrap() error { return ErrContract }

func contractErrorf(block, phase, format string, args ...any) error {
	return &ContractError{Block: block, Phase: phase, Msg: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
