// auditor grades a repository and its architecture report against a
// rubric: detectives collect evidence concurrently, judges score it, and a
// deterministic synthesis step produces the verdict.
//
// Usage:
//
//	auditor audit --repo DIR --report FILE [-o out.md] [--format md|json|html|pdf]
//	auditor rubric show|validate|dimensions
//	auditor graph [--def FILE] [--yaml]
//	auditor serve
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
