package config

const SourceFileExt = ".fl"

// SourceFileExtensions are all recognized statement file extensions
var SourceFileExtensions = []string{".fl", ".kdl"}

// BlockFileExt marks a block file inside a replay directory.
const BlockFileExt = ".blk"

// Execution limits applied to every statement.
const (
	DefaultStatementMana uint64 = 4_000_000
	DefaultHeapLimit     uint64 = 1 << 22
	MaxCallDepth                = 1024
	MaxReadbackNodes            = 1 << 20
)

// Name limits
const (
	MaxNameSegments = 8
	MaxNameLength   = 64
	MaxTupleArity   = 8
)

// Built-in IO constructor names
const (
	IODone = "IO.DONE"
	IOTake = "IO.TAKE"
	IOSave = "IO.SAVE"
	IOLoad = "IO.LOAD"
	IOCall = "IO.CALL"
	IOTick = "IO.TICK"
	IOFail = "IO.FAIL"
)

// TupleName returns the built-in tuple constructor of arity n: T0 ... T8.
func TupleName(n int) string {
	return "T" + string(rune('0'+n))
}
