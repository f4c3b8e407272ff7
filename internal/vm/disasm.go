package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders the code stream as a listing, one unit per line.
func Disassemble(program *Program) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; %s  (%d units, root locals=%d)\n",
		program.Source, program.Code.Len(), program.Root.NumLocals)

	depth := 0
	for pc, u := range program.Code.Units {
		switch u.Kind {
		case UnitEndClosure:
			depth--
			fmt.Fprintf(&sb, "%04d %s END_CLOSURE\n", pc, indent(depth))
		case UnitValue:
			fmt.Fprintf(&sb, "%04d %s  .value %s\n", pc, indent(depth), inspectInline(u.Val))
		case UnitInstruction:
			fmt.Fprintf(&sb, "%04d %s %s\n", pc, indent(depth), OpcodeNames[u.Op])
			if u.Op == OP_MAKE_CLOSURE {
				depth++
			}
		}
	}
	return sb.String()
}

func indent(depth int) string {
	if depth < 0 {
		depth = 0
	}
	return strings.Repeat("  ", depth)
}

func inspectInline(v Value) string {
	if v.IsString() {
		return fmt.Sprintf("%q", v.AsString())
	}
	return v.Inspect()
}
