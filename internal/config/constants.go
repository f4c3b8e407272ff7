// Package config holds compile-time constants and runtime limits.
package config

// SourceFileExt is the canonical Moonix source extension.
const SourceFileExt = ".mnx"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".mnx", ".lua"}

// BundleFileExt is the extension of compiled bundles.
const BundleFileExt = ".mnxc"

// MaxConst bounds every frame's constant pool.
const MaxConst = 256

// MaxGlobals is the number of operand-stack slots reserved for globals
// at the bottom of the stack.
const MaxGlobals = 256

// Initial sizes for stack and frames
const InitialStackSize = 2048
const InitialFrameCount = 256

// Growth increment when stack/frames need to expand
const StackGrowthIncrement = 1024
const FrameGrowthIncrement = 128

// Maximum call stack depth to prevent runaway recursion
const MaxFrameCount = 4096

// Maximum operand stack size to prevent OOM
const MaxStackSize = 1024 * 1024 // 1M slots

// DefaultMaxInstructions bounds a single run when no limits file raises
// it. Zero means unbounded.
const DefaultMaxInstructions = 0
