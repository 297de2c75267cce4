package gen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Module is one module a tool can generate.
type Module struct {
	Params []string `toml:"params"`
	// Outputs maps an existential parameter to the key the tool prints
	// its value under.
	Outputs    map[string]string `toml:"outputs"`
	NameFormat string            `toml:"name_format"`
	CLI        string            `toml:"cli"`
}

// Tool is the description of a generator read from its manifest.
type Tool struct {
	Name            string            `toml:"name"`
	Path            string            `toml:"path"`
	RequiresOutFile bool              `toml:"requires_out_file"`
	Globals         map[string]string `toml:"globals"`
	Modules         map[string]Module `toml:"modules"`
}

var ErrBadTool = errors.New("invalid tool manifest")

// ParseTool decodes a tool manifest.
func ParseTool(src string) (*Tool, error) {
	var t Tool
	meta, err := toml.Decode(src, &t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadTool, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrBadTool, undecoded)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTool reads a manifest. A relative tool path is resolved against the
// manifest's directory.
func LoadTool(path string) (*Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gen: %w", err)
	}
	t, err := ParseTool(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !filepath.IsAbs(t.Path) {
		t.Path = filepath.Join(filepath.Dir(path), t.Path)
	}
	return t, nil
}

func (t *Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: missing name", ErrBadTool)
	}
	if t.Path == "" {
		return fmt.Errorf("%w: tool %s has no path", ErrBadTool, t.Name)
	}
	names := make([]string, 0, len(t.Modules))
	for name := range t.Modules {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		m := t.Modules[name]
		if m.NameFormat == "" || m.CLI == "" {
			return fmt.Errorf("%w: module %s of tool %s needs name_format and cli", ErrBadTool, name, t.Name)
		}
	}
	return nil
}

// binding is an ordered list of template variables.
type binding [][2]string

func (b binding) lookup(name string) (string, bool) {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i][0] == name {
			return b[i][1], true
		}
	}
	return "", false
}

// expand replaces $VAR and ${VAR} with their values. Unknown variables are
// an error.
func (b binding) expand(tmpl string) (string, error) {
	var missing []string
	out := os.Expand(tmpl, func(name string) string {
		v, ok := b.lookup(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("gen: unbound variables in %q: %s", tmpl, strings.Join(missing, ", "))
	}
	return out, nil
}

// parseOutput reads the `key = value` lines a tool prints.
func parseOutput(stdout string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(stdout, "\n") {
		name, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(val)
	}
	return out
}
