package main

import (
	"auditor/internal/detective"
	"auditor/internal/judge"
	"auditor/internal/orchestrate"
	"auditor/internal/rubric"
)

// defaultAuditor registers the built-in detectives and judges.
func defaultAuditor(cfg orchestrate.Config) *orchestrate.Auditor {
	return &orchestrate.Auditor{
		Detectives: detective.Default(),
		Judges:     judge.Default(),
		Config:     cfg,
		Workspace:  detective.NewCloner(),
	}
}

// loadRubric returns the rubric at path, or the embedded default when path is empty.
func loadRubric(path string) (*rubric.Rubric, error) {
	if path == "" {
		return rubric.Default(), nil
	}
	return rubric.Load(path)
}
