package layout

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Save writes every object of the layout to repo. Devices and feedbacks are
// written before the streets that reference them.
func (l *Layout) Save(ctx context.Context, repo storage.Repository) error {
	l.mu.RLock()
	devices := make([]*Device, 0, len(l.devices))
	for _, d := range l.devices {
		devices = append(devices, d)
	}
	feedbacks := make([]*Feedback, 0, len(l.feedbacks))
	for _, f := range l.feedbacks {
		feedbacks = append(feedbacks, f)
	}
	tracks := make([]*Track, 0, len(l.tracks))
	for _, t := range l.tracks {
		tracks = append(tracks, t)
	}
	streets := make([]*Street, 0, len(l.streets))
	for _, s := range l.streets {
		streets = append(streets, s)
	}
	l.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	sort.Slice(feedbacks, func(i, j int) bool { return feedbacks[i].ID < feedbacks[j].ID })
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })
	sort.Slice(streets, func(i, j int) bool { return streets[i].ID < streets[j].ID })

	for _, d := range devices {
		if err := repo.SaveObject(ctx, storage.Object{
			Type: storage.ObjectDevice, ID: uint32(d.ID), Name: d.Name, Settings: d.Serialize(),
		}); err != nil {
			return fmt.Errorf("saving device %d: %w", d.ID, err)
		}
	}
	for _, f := range feedbacks {
		if err := repo.SaveObject(ctx, storage.Object{
			Type: storage.ObjectFeedback, ID: uint32(f.ID), Name: f.Name, Settings: f.Serialize(),
		}); err != nil {
			return fmt.Errorf("saving feedback %d: %w", f.ID, err)
		}
	}
	for _, t := range tracks {
		if err := repo.SaveObject(ctx, storage.Object{
			Type: storage.ObjectTrack, ID: uint32(t.ID), Name: t.Name, Settings: t.Serialize(),
		}); err != nil {
			return fmt.Errorf("saving track %d: %w", t.ID, err)
		}
	}
	for _, s := range streets {
		rec, relations := s.Serialize()
		if err := repo.SaveObject(ctx, storage.Object{
			Type: storage.ObjectStreet, ID: uint32(s.ID), Name: s.Name, Settings: rec,
		}); err != nil {
			return fmt.Errorf("saving street %d: %w", s.ID, err)
		}
		if err := repo.SaveRelations(ctx, storage.ObjectStreet, uint32(s.ID), relations); err != nil {
			return fmt.Errorf("saving relations of street %d: %w", s.ID, err)
		}
	}
	return nil
}

// Load adds every object stored in repo to the layout. Objects already in
// the layout cause ErrExists.
func (l *Layout) Load(ctx context.Context, repo storage.Repository) error {
	objs, err := repo.ObjectsOfType(ctx, storage.ObjectDevice)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	for _, obj := range objs {
		d, err := DeserializeDevice(obj.Settings)
		if err != nil {
			return fmt.Errorf("device %d: %w", obj.ID, err)
		}
		if err := l.AddDevice(d); err != nil {
			return err
		}
	}

	if objs, err = repo.ObjectsOfType(ctx, storage.ObjectFeedback); err != nil {
		return fmt.Errorf("loading feedbacks: %w", err)
	}
	for _, obj := range objs {
		f, err := DeserializeFeedback(obj.Settings)
		if err != nil {
			return fmt.Errorf("feedback %d: %w", obj.ID, err)
		}
		if err := l.AddFeedback(f); err != nil {
			return err
		}
	}

	if objs, err = repo.ObjectsOfType(ctx, storage.ObjectTrack); err != nil {
		return fmt.Errorf("loading tracks: %w", err)
	}
	for _, obj := range objs {
		t, err := DeserializeTrack(obj.Settings)
		if err != nil {
			return fmt.Errorf("track %d: %w", obj.ID, err)
		}
		if err := l.AddTrack(t); err != nil {
			return err
		}
	}

	if objs, err = repo.ObjectsOfType(ctx, storage.ObjectStreet); err != nil {
		return fmt.Errorf("loading streets: %w", err)
	}
	for _, obj := range objs {
		relations, err := repo.RelationsOf(ctx, storage.ObjectStreet, obj.ID)
		if err != nil {
			return fmt.Errorf("loading relations of street %d: %w", obj.ID, err)
		}
		s, err := DeserializeStreet(obj.Settings, relations)
		if err != nil {
			return fmt.Errorf("street %d: %w", obj.ID, err)
		}
		if err := l.AddStreet(s); err != nil {
			return err
		}
	}

	l.log().Info("layout loaded",
		"tracks", len(l.Tracks()),
		"streets", len(l.Streets()),
		"devices", len(l.Devices()),
		"feedbacks", len(l.Feedbacks()),
	)
	return nil
}
