package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// ParseError names the offending line in daemon.dat.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("daemon.dat:%d: %s", e.Line, e.Message)
}

// executableSuffix mirrors the config file's documented default: the
// executable for a simple entry is the process name with the platform's
// native suffix appended.
func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// LoadFile opens path and parses it as a daemon.dat process list.
func LoadFile(path string) ([]ProcessSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f, filepath.Dir(path))
}

// Parse reads a daemon.dat stream in order, producing ProcessSpecs. baseDir
// is the directory simple entries resolve their sibling working directory
// against (the directory containing daemon.dat).
func Parse(r io.Reader, baseDir string) ([]ProcessSpec, error) {
	order := make([]string, 0)
	byName := make(map[string]ProcessSpec)

	var sawContent bool
	var lastErr error

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		sawContent = true

		var spec ProcessSpec
		var err error
		if strings.Contains(trimmed, ":") {
			spec, err = parseExtended(trimmed, baseDir, lineNo)
		} else {
			spec, err = parseSimple(trimmed, baseDir)
		}
		if err != nil {
			// A malformed line is reported to the operator but does not
			// abort the whole load: any entries that did parse still run.
			slog.Warn("skipping malformed config line", "error", err)
			lastErr = err
			continue
		}

		if _, exists := byName[spec.Name]; exists {
			slog.Warn("duplicate process name in config, last occurrence wins",
				"name", spec.Name, "line", lineNo)
		} else {
			order = append(order, spec.Name)
		}
		byName[spec.Name] = spec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	specs := make([]ProcessSpec, 0, len(order))
	for _, name := range order {
		specs = append(specs, byName[name])
	}

	if len(specs) == 0 && sawContent {
		return specs, lastErr
	}
	return specs, nil
}

func parseSimple(name string, baseDir string) (ProcessSpec, error) {
	if name == "" {
		return ProcessSpec{}, fmt.Errorf("empty process name")
	}
	return ProcessSpec{
		Name:           name,
		ExecutablePath: filepath.Join(baseDir, name+executableSuffix()),
		WorkingDir:     filepath.Join(filepath.Dir(baseDir), name),
		Arguments:      nil,
		Environment:    map[string]string{},
		RestartPolicy:  DefaultRestartPolicy(),
	}, nil
}

// parseExtended parses "name : executable_path : working_directory : args : max_restarts".
// Trailing fields may be omitted.
func parseExtended(line string, baseDir string, lineNo int) (ProcessSpec, error) {
	fields := strings.Split(line, ":")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	name := fields[0]
	if name == "" {
		return ProcessSpec{}, &ParseError{Line: lineNo, Message: "missing process name"}
	}

	spec := ProcessSpec{
		Name:          name,
		Environment:   map[string]string{},
		RestartPolicy: DefaultRestartPolicy(),
	}

	spec.ExecutablePath = filepath.Join(baseDir, name+executableSuffix())
	if len(fields) > 1 && fields[1] != "" {
		spec.ExecutablePath = fields[1]
	}

	spec.WorkingDir = filepath.Join(filepath.Dir(baseDir), name)
	if len(fields) > 2 && fields[2] != "" {
		spec.WorkingDir = fields[2]
	}

	if len(fields) > 3 && fields[3] != "" {
		spec.Arguments = strings.Fields(fields[3])
	}

	if len(fields) > 4 && fields[4] != "" {
		n, err := strconv.ParseUint(fields[4], 10, 32)
		if err != nil {
			return ProcessSpec{}, &ParseError{
				Line:    lineNo,
				Message: fmt.Sprintf("invalid max_restarts %q: %v", fields[4], err),
			}
		}
		spec.RestartPolicy.MaxRestarts = int(n)
		spec.RestartPolicy.Unbounded = false
	}

	return spec, nil
}
