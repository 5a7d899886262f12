// Command wabbitc compiles Wabbit source files: to a printed value via
// the IR interpreter by default, or to a binary wasm module (-wasm) or
// textual LLVM IR (-ll).
package main

import (
	"fmt"
	"os"

	"wabbitc/internal/config"
	"wabbitc/internal/diag"
	"wabbitc/internal/interp"
	"wabbitc/internal/irgen"
	"wabbitc/internal/lexer"
	"wabbitc/internal/llvmgen"
	"wabbitc/internal/parser"
	"wabbitc/internal/sema"
	"wabbitc/internal/token"
	"wabbitc/internal/wasmgen"
)

// run drives one full compile, shaped by opt.
func run(opt config.Options) error {
	src, err := os.ReadFile(opt.Src)
	if err != nil {
		return fmt.Errorf("could not read source file: %s", err)
	}

	if opt.Tokens {
		return printTokens(string(src))
	}

	file, err := parser.Parse(string(src))
	if err != nil {
		return fmt.Errorf("syntax error: %s", err)
	}

	sink := diag.NewSink(opt.Src)
	res := sema.Check(file, sink)
	if sink.HasErrors() {
		for _, d := range sink.Errors() {
			fmt.Println(d.String())
		}
		return fmt.Errorf("%d error(s)", len(sink.Errors()))
	}

	mod := irgen.Generate(file, res)

	switch opt.Backend {
	case config.Wasm:
		return writeOutput(opt, wasmgen.Encode(mod))
	case config.LLVM:
		ir, err := llvmgen.Generate(mod, opt.Src)
		if err != nil {
			return fmt.Errorf("LLVM error: %s", err)
		}
		return writeOutput(opt, []byte(ir))
	default:
		it := interp.New(mod)
		if _, err := it.Run(); err != nil {
			return fmt.Errorf("runtime error: %s", err)
		}
		return nil
	}
}

func printTokens(src string) error {
	lx := lexer.New(src)
	for {
		tok := lx.Next()
		fmt.Println(tok.String())
		if tok.Type == token.EOF || tok.Type == token.ERROR {
			break
		}
	}
	return nil
}

func writeOutput(opt config.Options, data []byte) error {
	if opt.Out == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(opt.Out, data, 0644)
}

func main() {
	opt, err := config.ParseArgs()
	if err != nil {
		fmt.Printf("argument error: %s\n", err)
		os.Exit(1)
	}
	if err := run(opt); err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}
}
