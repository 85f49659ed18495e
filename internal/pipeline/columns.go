package pipeline

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed columns.yaml
var defaultColumnsYAML []byte

// ColumnMap holds, per analysis stage, raw column name → description. The
// descriptions only feed the prompt.
type ColumnMap struct {
	Transaction map[string]string `yaml:"transaction"`
	Demographic map[string]string `yaml:"demographic"`
	Income      map[string]string `yaml:"income"`
	Holding     map[string]string `yaml:"holding"`
}

// ParseColumns decodes a column mapping document.
func ParseColumns(data []byte) (*ColumnMap, error) {
	var m ColumnMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse columns")
	}
	return &m, nil
}

// LoadColumns reads a column mapping file. Stages missing from the file keep
// the built-in descriptions.
func LoadColumns(path string) (*ColumnMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read columns %s", path)
	}
	m, err := ParseColumns(data)
	if err != nil {
		return nil, err
	}
	def := DefaultColumns()
	if m.Transaction == nil {
		m.Transaction = def.Transaction
	}
	if m.Demographic == nil {
		m.Demographic = def.Demographic
	}
	if m.Income == nil {
		m.Income = def.Income
	}
	if m.Holding == nil {
		m.Holding = def.Holding
	}
	return m, nil
}

// DefaultColumns returns the built-in column descriptions.
func DefaultColumns() *ColumnMap {
	m, err := ParseColumns(defaultColumnsYAML)
	if err != nil {
		panic(err)
	}
	return m
}
