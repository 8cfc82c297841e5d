// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mmchain

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Opcode of the fused instruction.
	Opcode = "mmchain"

	// ExecType prefix optionally present in serialized instructions.
	ExecType = "CP"

	// OperandDelimiter separates the fields of a serialized instruction.
	OperandDelimiter = "°"

	// ValueTypeDelimiter separates the name of an operand from its data and value types.
	ValueTypeDelimiter = "·"
)

// Operand of a serialized instruction: a variable name, optionally annotated with its data and value types.
type Operand struct {
	Name      string
	DataType  string
	ValueType string
}

// ParseOperand parses "name·DATATYPE·VALUETYPE", where the types are optional.
func ParseOperand(s string) (Operand, error) {
	parts := strings.Split(s, ValueTypeDelimiter)
	if parts[0] == "" {
		return Operand{}, errors.Errorf("empty operand name in %q", s)
	}
	if len(parts) > 3 {
		return Operand{}, errors.Errorf("too many fields in operand %q", s)
	}
	op := Operand{Name: parts[0]}
	if len(parts) > 1 {
		op.DataType = parts[1]
	}
	if len(parts) > 2 {
		op.ValueType = parts[2]
	}
	return op, nil
}

// String implements fmt.Stringer, and it is the inverse of ParseOperand.
func (op Operand) String() string {
	parts := []string{op.Name}
	if op.DataType != "" || op.ValueType != "" {
		parts = append(parts, op.DataType)
	}
	if op.ValueType != "" {
		parts = append(parts, op.ValueType)
	}
	return strings.Join(parts, ValueTypeDelimiter)
}

// Instruction is the fused matrix-multiplication chain instruction handed to the executor.
//
// W holds the third operand: the weights w for XtwXv or the vector y for XtXvy. It is empty for XtXv.
// NumThreads is the requested degree of parallelism, it is configuration passed down to the kernel.
type Instruction struct {
	X, V, W    Operand
	Out        Operand
	Type       ChainType
	NumThreads int
}

// ParseInstruction parses a serialized instruction:
//
//	[CP°]mmchain°X°v°out°TYPE°k
//	[CP°]mmchain°X°v°w°out°TYPE°k
//
// The 3-operand form is only accepted for XtwXv and XtXvy, and the 2-operand form only for XtXv.
func ParseInstruction(str string) (*Instruction, error) {
	parts := strings.Split(str, OperandDelimiter)
	if len(parts) > 0 && parts[0] == ExecType {
		parts = parts[1:]
	}
	if len(parts) == 0 || parts[0] != Opcode {
		return nil, errors.Errorf("not a %q instruction: %q", Opcode, str)
	}
	fields := parts[1:]
	if len(fields) != 5 && len(fields) != 6 {
		return nil, errors.Errorf("%q instruction requires 5 or 6 fields, got %d in %q", Opcode, len(fields), str)
	}

	operands := make([]Operand, len(fields)-2)
	for ii := range operands {
		var err error
		operands[ii], err = ParseOperand(fields[ii])
		if err != nil {
			return nil, errors.WithMessagef(err, "parsing %q instruction operand #%d", Opcode, ii)
		}
	}
	chainType, err := ParseChainType(fields[len(fields)-2])
	if err != nil {
		return nil, errors.WithMessagef(err, "parsing %q instruction", Opcode)
	}
	numThreads, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return nil, errors.Wrapf(err, "parsing number of threads of %q instruction", Opcode)
	}

	inst := &Instruction{Type: chainType, NumThreads: numThreads}
	inst.X, inst.V = operands[0], operands[1]
	if len(operands) == 4 {
		inst.W = operands[2]
	}
	inst.Out = operands[len(operands)-1]
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Validate checks that the number of operands matches the chain type.
func (inst *Instruction) Validate() error {
	if !inst.Type.IsValid() {
		return errors.Errorf("invalid chain type %s for %q instruction", inst.Type, Opcode)
	}
	hasW := inst.W.Name != ""
	if hasW != (inst.Type.NumOperands() == 3) {
		return errors.Errorf("chain type %s takes %d operands, but third operand given is %q",
			inst.Type, inst.Type.NumOperands(), inst.W.Name)
	}
	if inst.X.Name == "" || inst.V.Name == "" || inst.Out.Name == "" {
		return errors.Errorf("%q instruction with missing operand names: %+v", Opcode, *inst)
	}
	return nil
}

// String serializes the instruction, it is the inverse of ParseInstruction. The ExecType prefix is included.
func (inst *Instruction) String() string {
	parts := []string{ExecType, Opcode, inst.X.String(), inst.V.String()}
	if inst.W.Name != "" {
		parts = append(parts, inst.W.String())
	}
	parts = append(parts, inst.Out.String(), inst.Type.String(), strconv.Itoa(inst.NumThreads))
	return strings.Join(parts, OperandDelimiter)
}
