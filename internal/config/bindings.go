package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// GenConfig maps a generator tool name to its key-value configuration.
type GenConfig map[string]map[string]string

// Bindings are the user-provided values for the entrypoint parameters and
// the generator tools.
type Bindings struct {
	Params []uint64  `toml:"params"`
	Gen    GenConfig `toml:"gen"`
}

var ErrUndecodedKeys = errors.New("unknown keys in bindings")

// LoadBindings reads a bindings file. An empty path yields empty bindings.
func LoadBindings(path string) (*Bindings, error) {
	if path == "" {
		return &Bindings{Gen: GenConfig{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read bindings: %w", path, err)
	}
	b, err := ParseBindings(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func ParseBindings(src string) (*Bindings, error) {
	var b Bindings
	meta, err := toml.Decode(src, &b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUndecodedKeys, undecoded)
	}
	if b.Gen == nil {
		b.Gen = GenConfig{}
	}
	return &b, nil
}

// Tool returns the configuration of one generator tool.
func (b *Bindings) Tool(name string) map[string]string {
	if b == nil || b.Gen == nil {
		return nil
	}
	return b.Gen[name]
}
