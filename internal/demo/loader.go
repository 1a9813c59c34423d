package demo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/kmap/internal/signal"
)

type scriptFile struct {
	Steps []stepEntry `yaml:"steps"`
}

type stepEntry struct {
	Name       string `yaml:"name"`
	Signal     string `yaml:"signal"`
	DurationMS int    `yaml:"duration_ms"`
}

// ParseScriptYAML decodes a script from YAML bytes. Step ids are assigned
// in file order starting at 1.
func ParseScriptYAML(data []byte) (Script, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("demo: script payload is empty")
	}
	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("demo: decode script: %w", err)
	}
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("demo: script has no steps")
	}
	script := make(Script, 0, len(file.Steps))
	for idx, entry := range file.Steps {
		name := signal.NormalizeName(entry.Signal)
		if name == "" {
			return nil, fmt.Errorf("demo: step[%d]: signal is required", idx)
		}
		if entry.DurationMS <= 0 {
			return nil, fmt.Errorf("demo: step[%d] %s: duration_ms must be > 0", idx, name)
		}
		label := entry.Name
		if label == "" {
			label = name
		}
		script = append(script, Step{
			ID:       idx + 1,
			Name:     label,
			Signal:   name,
			Duration: time.Duration(entry.DurationMS) * time.Millisecond,
		})
	}
	return script, nil
}

// LoadScriptReader reads script data from an io.Reader.
func LoadScriptReader(r io.Reader) (Script, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("demo: read script: %w", err)
	}
	return ParseScriptYAML(content)
}

// LoadScriptFile loads a script from path.
func LoadScriptFile(path string) (Script, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("demo: read %s: %w", path, err)
	}
	script, parseErr := ParseScriptYAML(content)
	if parseErr != nil {
		return nil, fmt.Errorf("demo: %s: %w", path, parseErr)
	}
	return script, nil
}
