package loco

import (
	"fmt"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/routing"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Record renders the configuration as a storage record.
func (c Config) Record() *storage.Record {
	return storage.NewRecord().
		Set("objectType", "Loco").
		SetUint("locoID", uint64(c.ID)).
		Set("name", c.Name).
		SetUint("controlID", uint64(c.Binding.Control)).
		Set("protocol", string(c.Binding.Protocol)).
		SetUint("address", uint64(c.Binding.Address)).
		Set("direction", c.Orientation.String()).
		SetUint("trackID", uint64(c.Track)).
		SetUint("length", uint64(c.Length)).
		SetBool("commuter", c.Commuter).
		SetUint("maxspeed", uint64(c.Speeds.Max)).
		SetUint("travelspeed", uint64(c.Speeds.Travel)).
		SetUint("reducedspeed", uint64(c.Speeds.Reduced)).
		SetUint("creepspeed", uint64(c.Speeds.Creep)).
		Set("policy", string(c.Policy)).
		SetUint("functions", uint64(c.Functions))
}

// Serialize renders the loco as a storage record.
func (l *Loco) Serialize() *storage.Record {
	return l.Config().Record()
}

// ConfigFromRecord rebuilds a configuration from a storage record. Missing
// speeds fall back to the default profile.
func ConfigFromRecord(rec *storage.Record) (Config, error) {
	if rec.String("objectType", "") != "Loco" {
		return Config{}, fmt.Errorf("%w: not a loco record", ErrInvalidConfig)
	}
	id := layout.LocoID(rec.Uint("locoID", 0))
	if id == layout.LocoNone {
		return Config{}, fmt.Errorf("%w: loco without id", ErrInvalidConfig)
	}
	orientation, err := hardware.ParseOrientation(rec.String("direction", "right"))
	if err != nil {
		return Config{}, err
	}
	policy := routing.Policy("")
	if p := rec.String("policy", ""); p != "" {
		if policy, err = routing.ParsePolicy(p); err != nil {
			return Config{}, err
		}
	}

	def := DefaultSpeeds()
	return Config{
		ID:   id,
		Name: rec.String("name", ""),
		Binding: hardware.Binding{
			Control:  hardware.ControlID(rec.Uint("controlID", 0)),
			Protocol: hardware.Protocol(rec.String("protocol", "")),
			Address:  uint16(rec.Uint("address", 0)),
		},
		Orientation: orientation,
		Track:       layout.TrackID(rec.Uint("trackID", 0)),
		Length:      uint32(rec.Uint("length", 0)),
		Commuter:    rec.Bool("commuter", false),
		Speeds: Speeds{
			Max:     hardware.Speed(rec.Uint("maxspeed", uint64(def.Max))),
			Travel:  hardware.Speed(rec.Uint("travelspeed", uint64(def.Travel))),
			Reduced: hardware.Speed(rec.Uint("reducedspeed", uint64(def.Reduced))),
			Creep:   hardware.Speed(rec.Uint("creepspeed", uint64(def.Creep))),
		},
		Policy:    policy,
		Functions: uint32(rec.Uint("functions", 0)),
	}, nil
}
