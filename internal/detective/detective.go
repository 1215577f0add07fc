// Package detective holds the built-in evidence producers. Each one reads
// the case from disk and reports findings; none of them judges.
package detective

import (
	"errors"
	"fmt"
	"os"

	"auditor/internal/court"
	"auditor/internal/fanout"
)

// Producer IDs.
const (
	IDRepo   = "repo_investigator"
	IDDoc    = "doc_analyst"
	IDVision = "vision_inspector"
)

var (
	// ErrNoRepository is returned when the case names no repository.
	ErrNoRepository = errors.New("detective: repository path is required")

	// ErrNoReport is returned when the case names no report.
	ErrNoReport = errors.New("detective: report path is required")

	// ErrUnsupportedReport is returned for report formats the analyst cannot read.
	ErrUnsupportedReport = errors.New("detective: unsupported report format")

	// ErrCloneTimeout is returned when cloning a remote repository takes too long.
	ErrCloneTimeout = errors.New("detective: repository clone timed out")
)

// Producer is the evidence stage contract every detective satisfies.
type Producer = fanout.Producer[court.Case, []court.EvidenceItem]

// Default returns the three built-in detectives.
func Default() []Producer {
	return []Producer{
		NewRepoInvestigator(),
		NewDocAnalyst(),
		NewVisionInspector(),
	}
}

func requireDir(path string, missing error) error {
	if path == "" {
		return missing
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func requireFile(path string, missing error) error {
	if path == "" {
		return missing
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
