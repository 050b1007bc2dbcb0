package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/entrhq/docfetch/pkg/batch"
)

// readIdentifiers collects identifiers from --ids and --input, in that order.
// An input starting with '{' is parsed as a request body; anything else is read
// one identifier per line, skipping blanks and # comments.
func readIdentifiers(ids []string, input string, stdin io.Reader) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}

	if input != "" {
		data, err := readInput(input, stdin)
		if err != nil {
			return nil, err
		}
		fromFile, err := parseInput(data)
		if err != nil {
			return nil, err
		}
		out = append(out, fromFile...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no identifiers given, use --ids or --input", batch.ErrInvalidInput)
	}
	return out, nil
}

func readInput(input string, stdin io.Reader) ([]byte, error) {
	if input == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

func parseInput(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return batch.ParseRequest(trimmed)
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identifiers: %w", err)
	}
	return ids, nil
}
