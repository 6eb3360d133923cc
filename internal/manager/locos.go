package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// AddLoco creates a loco in manual mode. If cfg.Track is set the loco is
// placed on that track, which must be free or already held by the loco.
func (m *Manager) AddLoco(cfg loco.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.locos[cfg.ID]; exists {
		return fmt.Errorf("%w: %d", ErrLocoExists, cfg.ID)
	}
	lo, err := loco.New(cfg, env{m: m}, m.opts.Loco)
	if err != nil {
		return err
	}
	if cfg.Track != layout.TrackNone {
		if err := m.layout.PlaceLoco(cfg.Track, cfg.ID); err != nil {
			return fmt.Errorf("placing loco %d: %w", cfg.ID, err)
		}
	}
	lo.SetLogger(m.logger)
	m.locos[cfg.ID] = lo

	m.logger.Info("loco added", "loco", cfg.ID, "name", cfg.Name, "track", cfg.Track)
	m.emit(EventLocoStateChanged, lo.Snapshot())
	return nil
}

// RemoveLoco releases everything a manual-mode loco holds and deletes it,
// also from storage when a repository is configured. A loco in Error is
// released first; removal blocks until its automode loop has returned it to
// manual mode or ctx is done.
func (m *Manager) RemoveLoco(ctx context.Context, id layout.LocoID) error {
	lo, err := m.loco(id)
	if err != nil {
		return err
	}
	if err := lo.Release(); err != nil {
		return err
	}
	if err := lo.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for loco %d to leave automode: %w", id, err)
	}

	m.mu.Lock()
	delete(m.locos, id)
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.DeleteObject(ctx, storage.ObjectLoco, uint32(id)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("deleting loco %d: %w", id, err)
		}
	}
	m.logger.Info("loco removed", "loco", id)
	return nil
}

// Loco returns a snapshot of one loco.
func (m *Manager) Loco(id layout.LocoID) (loco.Snapshot, error) {
	lo, err := m.loco(id)
	if err != nil {
		return loco.Snapshot{}, err
	}
	return lo.Snapshot(), nil
}

// Locos returns snapshots of all locos ordered by ID.
func (m *Manager) Locos() []loco.Snapshot {
	list := m.locoList()
	out := make([]loco.Snapshot, 0, len(list))
	for _, lo := range list {
		out = append(out, lo.Snapshot())
	}
	return out
}

// LocoIntoTrack puts a manual-mode loco without a track onto track.
func (m *Manager) LocoIntoTrack(id layout.LocoID, track layout.TrackID) error {
	lo, err := m.loco(id)
	if err != nil {
		return err
	}
	snap := lo.Snapshot()
	if snap.State != loco.StateManual {
		return fmt.Errorf("%w: loco %d is %s", loco.ErrAutomodeActive, id, snap.State)
	}
	if snap.TrackFrom != layout.TrackNone {
		return fmt.Errorf("%w: loco %d on track %d", loco.ErrHasTrack, id, snap.TrackFrom)
	}

	if err := m.layout.PlaceLoco(track, id); err != nil {
		return err
	}
	if err := lo.AssignTrack(track); err != nil {
		m.layout.ReleaseTrack(track, id)
		return err
	}
	m.logger.Info("loco placed on track", "loco", id, "track", track)
	return nil
}

// LocoRelease releases every street and track a loco holds. It is allowed
// in manual mode and clears an error state.
func (m *Manager) LocoRelease(id layout.LocoID) error {
	lo, err := m.loco(id)
	if err != nil {
		return err
	}
	return lo.Release()
}

// LocoStart puts a loco into automode.
func (m *Manager) LocoStart(id layout.LocoID) error {
	lo, err := m.loco(id)
	if err != nil {
		return err
	}
	return lo.Start()
}

// LocoStop requests manual mode. A loco underway finishes its journey first.
func (m *Manager) LocoStop(id layout.LocoID) (loco.State, error) {
	lo, err := m.loco(id)
	if err != nil {
		return loco.StateError, err
	}
	return lo.Stop(), nil
}

// LocoStartAll starts every manual-mode loco that stands on a track. It
// returns the number started; locos that could not start are reported in
// the joined error.
func (m *Manager) LocoStartAll() (int, error) {
	var (
		started int
		errs    []error
	)
	for _, lo := range m.locoList() {
		snap := lo.Snapshot()
		if snap.State != loco.StateManual || snap.TrackFrom == layout.TrackNone {
			continue
		}
		if err := lo.Start(); err != nil {
			errs = append(errs, err)
			continue
		}
		started++
	}
	return started, errors.Join(errs...)
}

// LocoStopAll requests manual mode for every loco.
func (m *Manager) LocoStopAll() {
	for _, lo := range m.locoList() {
		lo.Stop()
	}
}

// LocoSpeed commands a speed by hand. Zero is accepted in any state.
func (m *Manager) LocoSpeed(id layout.LocoID, speed hardware.Speed) error {
	lo, err := m.loco(id)
	if err != nil {
		return err
	}
	return lo.SetSpeed(speed)
}

// LocoOrientation sets the travel direction of a manual-mode loco.
func (m *Manager) LocoOrientation(id layout.LocoID, o hardware.Orientation) error {
	lo, err := m.loco(id)
	if err != nil {
		return err
	}
	return lo.SetOrientation(o)
}

// LocoFunction switches a decoder function.
func (m *Manager) LocoFunction(id layout.LocoID, nr uint8, on bool) error {
	lo, err := m.loco(id)
	if err != nil {
		return err
	}
	return lo.SetFunction(nr, on)
}
