package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/resume-matcher/internal/observability"
	"github.com/jonathan/resume-matcher/internal/schemas"
)

func readFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return content, nil
}

func readJSONFile(path string, v any) error {
	content, err := readFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from %s: %w", path, err)
	}
	return nil
}

// writeOutput writes v as indented JSON to outPath, or stdout when empty.
// With a schema name the output is checked against it; a mismatch only warns.
func writeOutput(v any, outPath, schemaName string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if schemaName != "" {
		if err := schemas.ValidateBytes(schemaName, data); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: Output validation failed: %v\n", err)
		}
	}

	if outPath == "" {
		_, _ = fmt.Fprintln(os.Stdout, string(data))
		return nil
	}

	outputDir := filepath.Dir(outPath)
	if outputDir != "" && outputDir != "." {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
		}
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", outPath, err)
	}
	return nil
}

// printer returns a stderr printer in verbose mode, nil otherwise
func printer() *observability.Printer {
	if !verbose {
		return nil
	}
	return observability.NewPrinter(os.Stderr)
}
