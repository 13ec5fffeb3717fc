// Command adv2c is the ADV2 compiler driver (spec.md §6): `adv2c [-d] [-s]
// [-r] [-o FILE] [-t TEMPLATE] SOURCE`. Argument parsing is hand-rolled, in
// the teacher's style, rather than built on the flag package — the surface
// is small and entirely positional/switch-based.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"adv2.dev/adv2/internal/binpack"
	"adv2.dev/adv2/internal/compiler"
	"adv2.dev/adv2/internal/isa"
	"adv2.dev/adv2/internal/propasm"
	"adv2.dev/adv2/internal/vm"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: adv2c [-d] [-s] [-r] [-o FILE] [-t TEMPLATE] SOURCE")
	os.Exit(1)
}

func main() {
	var (
		debug, dumpSyms, run bool
		outFile, template     string
		source                string
	)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-d":
			debug = true
		case a == "-s":
			dumpSyms = true
		case a == "-r":
			run = true
		case a == "-o":
			i++
			if i >= len(args) {
				usage()
			}
			outFile = args[i]
		case a == "-t":
			i++
			if i >= len(args) {
				usage()
			}
			template = args[i]
		case strings.HasPrefix(a, "-"):
			usage()
		default:
			if source != "" {
				usage()
			}
			source = a
		}
	}
	if source == "" {
		usage()
	}

	src, err := os.ReadFile(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adv2c: can't open %q: %v\n", source, err)
		os.Exit(1)
	}

	dir := filepath.Dir(source)
	c := compiler.NewCompiler(src, source, dir)
	c.Assemble = propasm.Assemble

	img, errs := c.Compile()
	if len(errs) > 0 {
		compiler.ReportAndExit(src, errs)
	}

	if dumpSyms {
		dumpSymbols(c)
	}
	if debug {
		disassemble(img)
	}

	out := img.Bytes()
	if template != "" {
		tmpl, err := os.ReadFile(template)
		if err != nil {
			fmt.Fprintf(os.Stderr, "adv2c: can't open template %q: %v\n", template, err)
			os.Exit(1)
		}
		out, err = binpack.Pack(tmpl, out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "adv2c: %v\n", err)
			os.Exit(1)
		}
	}

	if outFile == "" {
		outFile = defaultOutputName(source)
	}
	if err := os.WriteFile(outFile, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "adv2c: can't write %q: %v\n", outFile, err)
		os.Exit(1)
	}

	if run {
		runImage(img)
	}
}

// defaultOutputName replaces SOURCE's extension with ".a2img" (unpinned by
// spec.md — the original distribution's compiler leaves the output name to
// its caller, this driver just needs a stable default).
func defaultOutputName(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + ".a2img"
}

// dumpSymbols prints every global symbol's class and resolved value
// (spec.md §6's `-s`).
func dumpSymbols(c *compiler.Compiler) {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, g := range c.Globals() {
		state := "defined"
		if !g.Defined {
			state = "undefined"
		}
		fmt.Fprintf(w, "%-20s %-9s %-9s %d\n", g.Name, g.Class, state, g.Value)
	}
}

// disassemble lists the code segment one instruction per line: offset,
// mnemonic, and any operand (spec.md §6's `-d`).
func disassemble(img *isa.Image) {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	code := img.Code
	pc := int32(0)
	for int(pc) < len(code) {
		op := isa.Op(code[pc])
		opPC := pc
		pc++
		switch isa.Operand(op) {
		case isa.OperandBranch16:
			off := isa.Branch16(code[pc : pc+2])
			fmt.Fprintf(w, "%6d: %-8s %d (-> %d)\n", opPC, vm.OpName(op), off, pc+2+int32(off))
			pc += 2
		case isa.OperandLit32:
			v := isa.Lit32(code[pc : pc+4])
			fmt.Fprintf(w, "%6d: %-8s %d\n", opPC, vm.OpName(op), v)
			pc += 4
		case isa.OperandLit8:
			v := int8(code[pc])
			fmt.Fprintf(w, "%6d: %-8s %d\n", opPC, vm.OpName(op), v)
			pc++
		case isa.OperandU8:
			v := code[pc]
			fmt.Fprintf(w, "%6d: %-8s %d\n", opPC, vm.OpName(op), v)
			pc++
		default:
			fmt.Fprintf(w, "%6d: %-8s\n", opPC, vm.OpName(op))
		}
	}
}

// runImage executes img to completion against the process's own stdin/
// stdout (spec.md §6's `-r`, "run after compile").
func runImage(img *isa.Image) {
	host := vm.NewStdioHost(os.Stdin, os.Stdout)
	defer host.Flush()
	interp := vm.New(img, vm.DefaultStackSize, host)
	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		host.Flush()
		fmt.Fprintf(os.Stderr, "adv2c: %v\n", err)
		os.Exit(1)
	}
}
