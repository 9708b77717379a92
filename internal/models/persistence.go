package models

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed scenes.yaml
var defaultCatalog []byte

// SceneInfo is the display metadata for one scene id.
type SceneInfo struct {
	Name   string `yaml:"name"`
	Option string `yaml:"option"`
}

// Catalog maps scene ids to display names and option labels. The chain only
// stores scene text and successor ids.
type Catalog struct {
	Title  string               `yaml:"title"`
	Scenes map[uint64]SceneInfo `yaml:"scenes"`
}

// LoadCatalog reads a catalog from path, or the built-in one when path is
// empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse scene catalog: %w", err)
	}
	if c.Scenes == nil {
		c.Scenes = make(map[uint64]SceneInfo)
	}
	return &c, nil
}

// Name returns the short scene name.
func (c *Catalog) Name(id uint64) string {
	if info, ok := c.Scenes[id]; ok && info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("Scene %d", id)
}

// Option returns the label shown for choosing a move into scene id.
func (c *Catalog) Option(id uint64) string {
	if info, ok := c.Scenes[id]; ok && info.Option != "" {
		return info.Option
	}
	return fmt.Sprintf("Unknown path #%d", id)
}

// Options labels every successor in order.
func (c *Catalog) Options(next []uint64) []string {
	out := make([]string, len(next))
	for i, id := range next {
		out[i] = c.Option(id)
	}
	return out
}
