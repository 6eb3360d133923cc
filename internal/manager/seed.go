package manager

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/routing"
)

// Seed is a layout description in YAML, used to populate an empty database.
//
// Example:
//
//	tracks:
//	  - {id: 1, name: Platform 1, length: 1200}
//	devices:
//	  - {id: 5, name: W1, kind: switch, control: 1, protocol: dcc, address: 5}
//	feedbacks:
//	  - {id: 21, name: S1, control: 1, pin: 21}
//	streets:
//	  - id: 10
//	    from: 1
//	    from_direction: right
//	    to: 2
//	    to_direction: left
//	    relations: [{device: 5, state: on, hard: true}]
//	    triggers: {stop: 21}
//	locos:
//	  - {id: 3, name: BR 218, binding: {control: 1, protocol: dcc, address: 3}, track: 1}
type Seed struct {
	Tracks    []TrackSeed    `yaml:"tracks"`
	Devices   []DeviceSeed   `yaml:"devices"`
	Feedbacks []FeedbackSeed `yaml:"feedbacks"`
	Streets   []StreetSeed   `yaml:"streets"`
	Locos     []loco.Config  `yaml:"locos"`
}

// TrackSeed describes a track.
type TrackSeed struct {
	ID     layout.TrackID `yaml:"id"`
	Name   string         `yaml:"name"`
	Length uint32         `yaml:"length"`
}

// DeviceSeed describes a switch, signal or accessory.
type DeviceSeed struct {
	ID       layout.DeviceID   `yaml:"id"`
	Name     string            `yaml:"name"`
	Kind     layout.DeviceKind `yaml:"kind"`
	Binding  hardware.Binding  `yaml:",inline"`
	Inverted bool              `yaml:"inverted"`
}

// FeedbackSeed describes a feedback contact.
type FeedbackSeed struct {
	ID       layout.FeedbackID  `yaml:"id"`
	Name     string             `yaml:"name"`
	Control  hardware.ControlID `yaml:"control"`
	Pin      uint16             `yaml:"pin"`
	Inverted bool               `yaml:"inverted"`
}

// StreetSeed describes a street. Automode defaults to true.
type StreetSeed struct {
	ID            layout.StreetID      `yaml:"id"`
	Name          string               `yaml:"name"`
	From          layout.TrackID       `yaml:"from"`
	FromDirection hardware.Orientation `yaml:"from_direction"`
	To            layout.TrackID       `yaml:"to"`
	ToDirection   hardware.Orientation `yaml:"to_direction"`
	Relations     []layout.Relation    `yaml:"relations"`
	Triggers      layout.Triggers      `yaml:"triggers"`
	Automode      *bool                `yaml:"automode"`
	MinLength     uint32               `yaml:"min_length"`
	MaxLength     uint32               `yaml:"max_length"`
	Commuter      layout.Commuter      `yaml:"commuter"`
}

// ParseSeed decodes a seed. Unknown keys are rejected.
func ParseSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return &seed, nil
}

// LoadSeed reads and decodes a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("reading layout seed: %w", err)
	}
	return ParseSeed(bytes.NewReader(data))
}

// Import adds every object of seed to the layout and the loco table.
// Objects are added in dependency order; the first failure stops the import.
func (m *Manager) Import(seed *Seed) error {
	for _, d := range seed.Devices {
		if err := m.layout.AddDevice(layout.NewDevice(d.ID, d.Name, d.Kind, d.Binding, d.Inverted)); err != nil {
			return fmt.Errorf("device %d: %w", d.ID, err)
		}
	}
	for _, f := range seed.Feedbacks {
		if err := m.layout.AddFeedback(layout.NewFeedback(f.ID, f.Name, f.Control, f.Pin, f.Inverted)); err != nil {
			return fmt.Errorf("feedback %d: %w", f.ID, err)
		}
	}
	for _, t := range seed.Tracks {
		if err := m.layout.AddTrack(layout.NewTrack(t.ID, t.Name, t.Length)); err != nil {
			return fmt.Errorf("track %d: %w", t.ID, err)
		}
	}
	for _, s := range seed.Streets {
		automode := true
		if s.Automode != nil {
			automode = *s.Automode
		}
		if err := m.layout.AddStreet(&layout.Street{
			ID:            s.ID,
			Name:          s.Name,
			FromTrack:     s.From,
			FromDirection: s.FromDirection,
			ToTrack:       s.To,
			ToDirection:   s.ToDirection,
			Relations:     s.Relations,
			Triggers:      s.Triggers,
			Automode:      automode,
			MinLength:     s.MinLength,
			MaxLength:     s.MaxLength,
			Commuter:      s.Commuter,
		}); err != nil {
			return fmt.Errorf("street %d: %w", s.ID, err)
		}
	}
	for _, cfg := range seed.Locos {
		if cfg.Speeds == (loco.Speeds{}) {
			cfg.Speeds = loco.DefaultSpeeds()
		}
		if cfg.Policy != "" {
			if _, err := routing.ParsePolicy(string(cfg.Policy)); err != nil {
				return fmt.Errorf("loco %d: %w", cfg.ID, err)
			}
		}
		if err := m.AddLoco(cfg); err != nil {
			return fmt.Errorf("loco %d: %w", cfg.ID, err)
		}
	}

	m.logger.Info("layout seed imported",
		"tracks", len(seed.Tracks),
		"streets", len(seed.Streets),
		"devices", len(seed.Devices),
		"feedbacks", len(seed.Feedbacks),
		"locos", len(seed.Locos),
	)
	return nil
}
