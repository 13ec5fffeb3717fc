// Command adv2vm is the ADV2 interpreter driver (spec.md §6): `adv2vm [-d]
// IMAGE`. It loads a previously compiled image and runs it to completion
// against its own stdin/stdout.
package main

import (
	"fmt"
	"os"

	"adv2.dev/adv2/internal/isa"
	"adv2.dev/adv2/internal/vm"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: adv2vm [-d] IMAGE")
	os.Exit(1)
}

func main() {
	var debug bool
	var imagePath string

	for _, a := range os.Args[1:] {
		switch {
		case a == "-d":
			debug = true
		case a == "":
			usage()
		case a[0] == '-':
			usage()
		default:
			if imagePath != "" {
				usage()
			}
			imagePath = a
		}
	}
	if imagePath == "" {
		usage()
	}

	buf, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adv2vm: can't open %q: %v\n", imagePath, err)
		os.Exit(1)
	}

	img, err := isa.DecodeImage(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adv2vm: %v\n", err)
		os.Exit(1)
	}

	host := vm.NewStdioHost(os.Stdin, os.Stdout)
	defer host.Flush()

	interp := vm.New(&img, vm.DefaultStackSize, host)
	interp.Trace = debug

	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		host.Flush()
		fmt.Fprintf(os.Stderr, "adv2vm: %v\n", err)
		os.Exit(1)
	}
}
