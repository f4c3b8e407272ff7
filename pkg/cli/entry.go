// Package cli implements the moonix command-line driver.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/Chubek/Moonix/internal/cache"
	"github.com/Chubek/Moonix/internal/config"
	"github.com/Chubek/Moonix/internal/lexer"
	"github.com/Chubek/Moonix/internal/parser"
	"github.com/Chubek/Moonix/internal/pipeline"
	"github.com/Chubek/Moonix/internal/vm"
)

// Exit codes: front-end (scan/parse/compile) errors exit 1, VM faults
// exit 2.
const (
	ExitOK       = 0
	ExitFrontend = 1
	ExitRuntime  = 2
	ExitUsage    = 64
)

var log = commonlog.GetLogger("moonix.cli")

const usage = `usage: moonix <command> [arguments]

commands:
  run <file>       compile and execute a script or bundle
  compile <file>   compile a script into a bundle next to it
  disasm <file>    print the compiled code listing
`

// Entry is the driver entry point; it returns the process exit code.
func Entry(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return ExitUsage
	}

	switch args[0] {
	case "run":
		if len(args) != 2 {
			fmt.Fprint(os.Stderr, usage)
			return ExitUsage
		}
		return cmdRun(args[1])
	case "compile":
		if len(args) != 2 {
			fmt.Fprint(os.Stderr, usage)
			return ExitUsage
		}
		return cmdCompile(args[1])
	case "disasm":
		if len(args) != 2 {
			fmt.Fprint(os.Stderr, usage)
			return ExitUsage
		}
		return cmdDisasm(args[1])
	default:
		fmt.Fprintf(os.Stderr, "moonix: unknown command %q\n%s", args[0], usage)
		return ExitUsage
	}
}

func isBundleFile(path string) bool {
	return strings.HasSuffix(path, config.BundleFileExt)
}

// isSourceFile checks if a file has a recognized source extension.
func isSourceFile(path string) bool {
	for _, ext := range config.SourceFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// compileFile runs the front-end pipeline over a source file.
func compileFile(path string) (*vm.Program, int) {
	source, err := os.ReadFile(path)
	if err != nil {
		errorf("cannot read %s: %s", path, err)
		return nil, ExitFrontend
	}

	ctx := pipeline.NewPipelineContext(string(source))
	ctx.FilePath = path

	p := pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&vm.CompileProcessor{},
	)
	ctx = p.Run(ctx)
	if ctx.HasErrors() {
		for _, e := range ctx.Errors {
			errorf("%s", e)
		}
		return nil, ExitFrontend
	}
	return ctx.Program.(*vm.Program), ExitOK
}

// loadProgram resolves a path to a runnable program: bundles load
// directly, sources go through the cache and the compiler.
func loadProgram(path string) (*vm.Program, int) {
	if isBundleFile(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			errorf("cannot read %s: %s", path, err)
			return nil, ExitFrontend
		}
		bundle, err := vm.UnmarshalBundle(data)
		if err != nil {
			errorf("%s", err)
			return nil, ExitFrontend
		}
		program, err := bundle.Program()
		if err != nil {
			errorf("%s", err)
			return nil, ExitFrontend
		}
		return program, ExitOK
	}

	source, err := os.ReadFile(path)
	if err != nil {
		errorf("cannot read %s: %s", path, err)
		return nil, ExitFrontend
	}

	store := openCache()
	if store != nil {
		defer store.Close()
		hash := cache.Key(source)
		if data, ok, err := store.Get(hash); err == nil && ok {
			if bundle, err := vm.UnmarshalBundle(data); err == nil {
				if program, err := bundle.Program(); err == nil {
					log.Debugf("cache hit for %s", path)
					return program, ExitOK
				}
			}
			// A stale or corrupt entry falls through to a fresh
			// compile that overwrites it.
		}
	}

	program, code := compileFile(path)
	if code != ExitOK {
		return nil, code
	}

	if store != nil {
		storeBundle(store, source, program)
	}
	return program, ExitOK
}

func storeBundle(store *cache.Store, source []byte, program *vm.Program) {
	bundle, err := vm.NewBundle(program)
	if err != nil {
		log.Warningf("bundle not cached: %s", err)
		return
	}
	data, err := vm.MarshalBundle(bundle)
	if err != nil {
		log.Warningf("bundle not cached: %s", err)
		return
	}
	if err := store.Put(cache.Key(source), bundle.ID, data); err != nil {
		log.Warningf("bundle not cached: %s", err)
	}
}

func openCache() *cache.Store {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil
	}
	dir = filepath.Join(dir, "moonix")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	store, err := cache.Open(filepath.Join(dir, "bundles.db"))
	if err != nil {
		log.Warningf("cache unavailable: %s", err)
		return nil
	}
	return store
}

func cmdRun(path string) int {
	program, code := loadProgram(path)
	if code != ExitOK {
		return code
	}

	limits, err := config.LoadLimits(filepath.Join(filepath.Dir(path), "moonix.yaml"))
	if err != nil {
		errorf("bad limits file: %s", err)
		return ExitFrontend
	}

	machine := vm.New()
	machine.SetLimits(limits)
	result, err := machine.Run(program)
	if err != nil {
		errorf("%s", err)
		return ExitRuntime
	}
	if !result.IsNil() {
		fmt.Println(result.Inspect())
	}
	log.Debugf("executed %d instructions", machine.Executed())
	return ExitOK
}

func cmdCompile(path string) int {
	if !isSourceFile(path) {
		log.Warningf("%s does not have a recognized source extension", path)
	}
	program, code := compileFile(path)
	if code != ExitOK {
		return code
	}
	bundle, err := vm.NewBundle(program)
	if err != nil {
		errorf("%s", err)
		return ExitFrontend
	}
	data, err := vm.MarshalBundle(bundle)
	if err != nil {
		errorf("%s", err)
		return ExitFrontend
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + config.BundleFileExt
	if err := os.WriteFile(out, data, 0o644); err != nil {
		errorf("cannot write %s: %s", out, err)
		return ExitFrontend
	}
	fmt.Printf("%s (%d units, id %s)\n", out, program.Code.Len(), bundle.ID)
	return ExitOK
}

func cmdDisasm(path string) int {
	program, code := loadProgram(path)
	if code != ExitOK {
		return code
	}
	fmt.Print(vm.Disassemble(program))
	return ExitOK
}

// errorf prints to stderr, in red when it is a terminal.
func errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31m%s\x1b[0m\n", msg)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
}
