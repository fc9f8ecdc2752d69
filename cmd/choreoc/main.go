/*
Parses a `.choreography` file (or a bundled built-in example), runs the
analyzer, projects every declared role, and prints each role's local type.

Exit codes, per spec.md §6: 0 success, 1 parse error, 2 projection error.

For usage details, run choreoc with the command line flag -h or --help.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/coatyio/choreo/analyzer"
	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/clog"
	"github.com/coatyio/choreo/dsl"
	"github.com/coatyio/choreo/examples"
	"github.com/coatyio/choreo/project"
)

func main() {
	var help bool
	var log bool
	var builtin string

	flag.Usage = usage
	flag.BoolVar(&help, "h", false, "Show usage information")
	flag.BoolVar(&log, "l", false, "Show logging output (for debugging)")
	flag.StringVar(&builtin, "e", "", "Use a bundled example choreography instead of a file")
	flag.Parse()

	path := flag.Arg(0)
	if help || (path == "" && builtin == "") {
		usage()
		os.Exit(0)
	}

	if log {
		clog.Enable()
	}

	var c *ast.Choreography
	if builtin != "" {
		ex := examples.NewRegistry().ByName(builtin)
		if ex == nil {
			fmt.Printf("no bundled example named %q\n", builtin)
			os.Exit(1)
		}
		c = ex.Build()
	} else {
		res := dsl.ParseFile(path)
		if res.Err != nil {
			fmt.Printf("parse error: %v\n", res.Err)
			os.Exit(1)
		}
		c = res.Choreography
	}

	if err := analyzer.Analyze(c); err != nil {
		fmt.Printf("parse error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("protocol %s\n  global: %s\n", c.Name, c.Protocol)
	for _, r := range c.Roles {
		lt, err := project.Project(c.Protocol, r)
		if err != nil {
			fmt.Printf("projection error for role %s: %v\n", r.Name, err)
			os.Exit(2)
		}
		fmt.Printf("  %s: %s\n", r.Name, lt)
	}
}

func usage() {
	fmt.Printf(`usage: choreoc [-h|--help] [-l] [-e example] [file.choreography]

Parses, analyzes, and projects a choreography, printing each role's local type.

The following bundled examples are available via -e:

`)
	reg := examples.NewRegistry()
	maxLen := 0
	for _, name := range reg.Names() {
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	for _, name := range reg.Names() {
		fmt.Printf("  %*s: %s\n", maxLen, name, reg.ByName(name).Description)
	}
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
}
