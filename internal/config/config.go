// Package config parses command-line options for cmd/wabbitc. The
// hand-rolled, index-walking switch here (rather than the standard
// library's flag package) mirrors the teacher's util/args.go ParseArgs
// -- the CLI surface itself is outside this project's scope (see
// SPEC_FULL.md §6), but the ambient style it's built in is not.
package config

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Backend selects which of the three back ends cmd/wabbitc drives.
type Backend int

const (
	Interp Backend = iota
	Wasm
	LLVM
)

const appVersion = "wabbitc 1.0"

// Options holds one parsed command line.
type Options struct {
	Src     string  // path to the Wabbit source file
	Out     string  // output path; empty means standard output
	Backend Backend
	Verbose bool
	Tokens  bool // print the token stream and exit
}

// ParseArgs parses os.Args[1:] into an Options.
func ParseArgs() (Options, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (Options, error) {
	opt := Options{}
	if len(args) == 0 {
		return opt, fmt.Errorf("no source file given")
	}
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "-h", "-help", "--help":
			printHelp()
			os.Exit(0)
		case "-v", "-version", "--version":
			fmt.Println(appVersion)
			os.Exit(0)
		case "-wasm":
			opt.Backend = Wasm
		case "-ll":
			opt.Backend = LLVM
		case "-ts":
			opt.Tokens = true
		case "-vb":
			opt.Verbose = true
		case "-o":
			if i+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i])
			}
			if strings.HasPrefix(args[i+1], "-") {
				return opt, fmt.Errorf("expected output path, got new flag %s", args[i+1])
			}
			opt.Out = args[i+1]
			i++
		default:
			return opt, fmt.Errorf("unexpected flag: %s", args[i])
		}
	}
	opt.Src = args[len(args)-1]
	if strings.HasPrefix(opt.Src, "-") {
		return opt, fmt.Errorf("expected path to source file, got flag %s", opt.Src)
	}
	return opt, nil
}

func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help, --help\tPrints this help message and exits.")
	_, _ = fmt.Fprintln(w, "-v, -version, --version\tPrints the compiler version and exits.")
	_, _ = fmt.Fprintln(w, "-wasm\tEmit a binary WebAssembly module instead of interpreting.")
	_, _ = fmt.Fprintln(w, "-ll\tEmit textual LLVM IR instead of interpreting.")
	_, _ = fmt.Fprintln(w, "-o\tPath of the output file.")
	_, _ = fmt.Fprintln(w, "-ts\tPrint the token stream and exit.")
	_, _ = fmt.Fprintln(w, "-vb\tSets the verbose option; no output depends on it.")
	_ = w.Flush()
}
