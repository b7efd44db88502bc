package level

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

// point mirrors the YAML layout of a two dimensional coordinate.
type point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (p point) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

type obstacleDoc struct {
	X             float64 `yaml:"x"`
	Y             float64 `yaml:"y"`
	Width         float64 `yaml:"width"`
	Height        float64 `yaml:"height"`
	AllowsPortals *bool   `yaml:"allows_portals"`
}

type crateDoc struct {
	Position point  `yaml:"position"`
	Size     point  `yaml:"size"`
	Type     string `yaml:"type"`
}

type switchDoc struct {
	Position point  `yaml:"position"`
	Size     *point `yaml:"size"`
}

type sentryDoc struct {
	Position point   `yaml:"position"`
	Patrol   []point `yaml:"patrol"`
}

// document is the on-disk YAML representation of a level.
type document struct {
	Name        string        `yaml:"name"`
	PlayerStart point         `yaml:"player_start"`
	Obstacles   []obstacleDoc `yaml:"obstacles"`
	Crates      []crateDoc    `yaml:"crates"`
	Switches    []switchDoc   `yaml:"switches"`
	Sentries    []sentryDoc   `yaml:"sentries"`
}

// Load reads and validates a YAML level file.
func Load(path string) (*Level, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("level path must be provided")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level %s: %w", path, err)
	}
	lvl, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode level %s: %w", path, err)
	}
	return lvl, nil
}

// Decode parses a YAML level document from r.
func Decode(r io.Reader) (*Level, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}

	//1.- Obstacles accept portals unless the document explicitly opts out.
	lvl := &Level{Name: strings.TrimSpace(doc.Name), PlayerStart: doc.PlayerStart.vec()}
	if lvl.Name == "" {
		lvl.Name = "custom"
	}
	for _, o := range doc.Obstacles {
		allows := true
		if o.AllowsPortals != nil {
			allows = *o.AllowsPortals
		}
		lvl.Obstacles = append(lvl.Obstacles, NewObstacle(o.X, o.Y, o.Width, o.Height, allows))
	}
	//2.- Crates default to the wooden cube type.
	for _, c := range doc.Crates {
		kind := strings.TrimSpace(c.Type)
		if kind == "" {
			kind = "cube"
		}
		lvl.Crates = append(lvl.Crates, CrateSpec{Position: c.Position.vec(), Size: c.Size.vec(), Type: kind})
	}
	//3.- Switches fall back to the standard plate footprint.
	for _, s := range doc.Switches {
		size := r2.Vec{X: DefaultSwitchWidth, Y: DefaultSwitchHeight}
		if s.Size != nil {
			size = s.Size.vec()
		}
		lvl.Switches = append(lvl.Switches, SwitchSpec{Position: s.Position.vec(), Size: size})
	}
	for _, s := range doc.Sentries {
		spec := SentrySpec{Position: s.Position.vec()}
		for _, p := range s.Patrol {
			spec.Patrol = append(spec.Patrol, p.vec())
		}
		lvl.Sentries = append(lvl.Sentries, spec)
	}

	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	return lvl, nil
}
