package manager

import (
	"context"
	"fmt"

	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Load hydrates the layout and the locos from the repository and reconciles
// the stored reservations. Every loco starts in manual mode, so:
//   - streets still reserved or locked are released;
//   - a track is kept only by the loco whose configuration stands on it;
//   - a loco whose track is missing or held by another loco loses its track.
func (m *Manager) Load(ctx context.Context) error {
	if m.repo == nil {
		return ErrNoRepository
	}
	if err := m.layout.Load(ctx, m.repo); err != nil {
		return fmt.Errorf("loading layout: %w", err)
	}

	objs, err := m.repo.ObjectsOfType(ctx, storage.ObjectLoco)
	if err != nil {
		return fmt.Errorf("loading locos: %w", err)
	}
	configs := make([]loco.Config, 0, len(objs))
	for _, obj := range objs {
		cfg, err := loco.ConfigFromRecord(obj.Settings)
		if err != nil {
			return fmt.Errorf("loco %d: %w", obj.ID, err)
		}
		configs = append(configs, cfg)
	}

	m.reconcile(configs)
	for _, cfg := range configs {
		if err := m.AddLoco(cfg); err != nil {
			return err
		}
	}
	m.logger.Info("locos loaded", "count", len(configs))
	return nil
}

func (m *Manager) reconcile(configs []loco.Config) {
	claimed := make(map[layout.TrackID]layout.LocoID, len(configs))
	for i := range configs {
		cfg := &configs[i]
		if cfg.Track == layout.TrackNone {
			continue
		}
		t, err := m.layout.Track(cfg.Track)
		if err != nil {
			m.logger.Warn("loco stands on unknown track, clearing", "loco", cfg.ID, "track", cfg.Track)
			cfg.Track = layout.TrackNone
			continue
		}
		if t.Owner != layout.LocoNone && t.Owner != cfg.ID {
			m.logger.Warn("loco track held by another loco, clearing",
				"loco", cfg.ID,
				"track", cfg.Track,
				"owner", t.Owner,
			)
			cfg.Track = layout.TrackNone
			continue
		}
		if other, dup := claimed[cfg.Track]; dup {
			m.logger.Warn("two locos claim one track, clearing", "loco", cfg.ID, "track", cfg.Track, "other", other)
			cfg.Track = layout.TrackNone
			continue
		}
		claimed[cfg.Track] = cfg.ID
	}

	for _, s := range m.layout.Streets() {
		if s.Owner != layout.LocoNone {
			m.layout.ReleaseStreet(s.ID, s.Owner)
			m.logger.Info("released stale street reservation", "street", s.ID, "loco", s.Owner)
		}
	}
	for _, d := range m.layout.Devices() {
		if d.Owner != layout.LocoNone {
			m.layout.ReleaseDevice(d.ID, d.Owner)
			m.logger.Info("released stale device reservation", "device", d.ID, "loco", d.Owner)
		}
	}
	for _, t := range m.layout.Tracks() {
		if t.Owner != layout.LocoNone && claimed[t.ID] != t.Owner {
			m.layout.ReleaseTrack(t.ID, t.Owner)
			m.logger.Info("released stale track reservation", "track", t.ID, "loco", t.Owner)
		}
	}
}

// SaveAll writes the layout and every loco to the repository.
func (m *Manager) SaveAll(ctx context.Context) error {
	if m.repo == nil {
		return ErrNoRepository
	}
	if err := m.layout.Save(ctx, m.repo); err != nil {
		return err
	}
	locos := m.locoList()
	for _, lo := range locos {
		cfg := lo.Config()
		if err := m.repo.SaveObject(ctx, storage.Object{
			Type:     storage.ObjectLoco,
			ID:       uint32(cfg.ID),
			Name:     cfg.Name,
			Settings: cfg.Record(),
		}); err != nil {
			return fmt.Errorf("saving loco %d: %w", cfg.ID, err)
		}
	}
	m.logger.Debug("state saved", "locos", len(locos))
	return nil
}
