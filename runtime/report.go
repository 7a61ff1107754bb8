package runtime

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"

	"github.com/pithecene-io/scriptrun/types"
)

// WriteResultFile writes the result as indented JSON to path.
// If path is "-", writes to stderr.
func WriteResultFile(result *types.StepResult, path string) error {
	if path == "" {
		return errors.New("result path must not be empty")
	}
	if path == "-" {
		if err := writeResultTo(result, os.Stderr); err != nil {
			return fmt.Errorf("failed to write result to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalResult(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result to %s: %w", path, err)
	}
	return nil
}

// ReadResultFile reads a result written by WriteResultFile.
func ReadResultFile(path string) (*types.StepResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result types.StepResult
	if err := sonic.ConfigStd.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid result file %s: %w", path, err)
	}
	return &result, nil
}

func writeResultTo(result *types.StepResult, w io.Writer) error {
	data, err := marshalResult(result)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalResult(result *types.StepResult) ([]byte, error) {
	data, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return append(data, '\n'), nil
}
