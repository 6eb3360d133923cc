package routing

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
)

type nopDispatcher struct{}

func (nopDispatcher) SetSpeed(hardware.Binding, hardware.Speed)             {}
func (nopDispatcher) SetOrientation(hardware.Binding, hardware.Orientation) {}
func (nopDispatcher) SetFunction(hardware.Binding, uint8, bool)             {}
func (nopDispatcher) SetDevice(hardware.Binding, hardware.DeviceState)      {}
func (nopDispatcher) Booster(hardware.BoosterState)                         {}

// newStation builds track 1 with streets 10, 11 and 12 leading to tracks 2,
// 3 and 4. Street 12 leaves to the left; the others to the right. Device 5
// is shared by streets 10 and 11.
func newStation(t *testing.T) *layout.Layout {
	t.Helper()
	l := layout.New(nopDispatcher{})
	for id := layout.TrackID(1); id <= 4; id++ {
		if err := l.AddTrack(layout.NewTrack(id, "track", 1000)); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.AddDevice(layout.NewDevice(5, "W5", layout.DeviceSwitch, hardware.Binding{Control: 1, Address: 5}, false)); err != nil {
		t.Fatal(err)
	}

	right, left := hardware.OrientationRight, hardware.OrientationLeft
	streets := []*layout.Street{
		{ID: 10, FromTrack: 1, ToTrack: 2, FromDirection: right, Automode: true,
			Relations: []layout.Relation{{Device: 5, State: hardware.DeviceStateOff, Hard: true}}},
		{ID: 11, FromTrack: 1, ToTrack: 3, FromDirection: right, Automode: true,
			Relations: []layout.Relation{{Device: 5, State: hardware.DeviceStateOn, Hard: true}}},
		{ID: 12, FromTrack: 1, ToTrack: 4, FromDirection: left, Automode: true},
	}
	for _, s := range streets {
		if err := l.AddStreet(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.PlaceLoco(1, 7); err != nil {
		t.Fatal(err)
	}
	if err := l.SetTrackDirection(1, right); err != nil {
		t.Fatal(err)
	}
	return l
}

func ids(streets []layout.StreetSnapshot) []layout.StreetID {
	out := make([]layout.StreetID, len(streets))
	for i, s := range streets {
		out[i] = s.ID
	}
	return out
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyFirst, false},
		{"first", PolicyFirst, false},
		{"Random", PolicyRandom, false},
		{"longest_unused", PolicyLongestUnused, false},
		{"shortest", PolicyFirst, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownPolicy) {
			t.Errorf("ParsePolicy(%q) error = %v, want ErrUnknownPolicy", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCandidatesDirection(t *testing.T) {
	l := newStation(t)
	c := NewCoordinator(l, PolicyFirst)

	got := ids(c.Candidates(Request{Loco: 7, From: 1}))
	if len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Errorf("Candidates(no turn) = %v, want [10 11]", got)
	}
	got = ids(c.Candidates(Request{Loco: 7, From: 1, AllowTurn: true}))
	if len(got) != 3 {
		t.Errorf("Candidates(turn) = %v, want 3 streets", got)
	}
}

func TestCandidatesFilters(t *testing.T) {
	tests := []struct {
		name   string
		modify func(l *layout.Layout)
		req    Request
		want   int
	}{
		{
			name:   "hard locked device excludes both streets",
			modify: func(l *layout.Layout) { l.ReserveStreet(10, 8); l.LockStreet(10, 8) },
			req:    Request{Loco: 7, From: 1, AllowTurn: true},
			want:   1,
		},
		{
			name: "own hard lock does not exclude",
			modify: func(l *layout.Layout) {
				l.ReserveStreet(10, 7)
				l.LockStreet(10, 7)
			},
			req:  Request{Loco: 7, From: 1, AllowTurn: true},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newStation(t)
			tt.modify(l)
			c := NewCoordinator(l, PolicyFirst)
			if got := c.Candidates(tt.req); len(got) != tt.want {
				t.Errorf("Candidates() = %v, want %d streets", ids(got), tt.want)
			}
		})
	}
}

func TestCandidatesLengthAndCommuter(t *testing.T) {
	l := layout.New(nopDispatcher{})
	for id := layout.TrackID(1); id <= 4; id++ {
		l.AddTrack(layout.NewTrack(id, "track", 0))
	}
	l.AddStreet(&layout.Street{ID: 1, FromTrack: 1, ToTrack: 2, Automode: true, MaxLength: 500})
	l.AddStreet(&layout.Street{ID: 2, FromTrack: 1, ToTrack: 3, Automode: true, Commuter: layout.CommuterOnly})
	l.AddStreet(&layout.Street{ID: 3, FromTrack: 1, ToTrack: 4, Automode: false})

	c := NewCoordinator(l, PolicyFirst)
	got := ids(c.Candidates(Request{Loco: 1, From: 1, AllowTurn: true, Length: 800, Commuter: true}))
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("long commuter candidates = %v, want [2]", got)
	}
	got = ids(c.Candidates(Request{Loco: 1, From: 1, AllowTurn: true, Length: 300}))
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("short loco-hauled candidates = %v, want [1]", got)
	}
}

func TestSearchFirstPolicy(t *testing.T) {
	l := newStation(t)
	c := NewCoordinator(l, PolicyFirst)

	leg, ok := c.Search(Request{Loco: 7, From: 1})
	if !ok {
		t.Fatal("Search() found nothing")
	}
	if leg.Street != 10 || leg.To != 2 {
		t.Errorf("leg = %+v, want street 10 to track 2", leg)
	}
	s, _ := l.Street(10)
	if s.State != layout.LockLocked || s.Owner != 7 {
		t.Errorf("street 10 = %v/%d, want locked by 7", s.State, s.Owner)
	}
	if owner := l.TrackOwner(2); owner != 7 {
		t.Errorf("track 2 owner = %d, want 7", owner)
	}
}

func TestSearchSkipsBusyCandidate(t *testing.T) {
	l := newStation(t)
	l.ReserveTrack(2, 8)
	c := NewCoordinator(l, PolicyFirst)

	leg, ok := c.Search(Request{Loco: 7, From: 1})
	if !ok || leg.Street != 11 {
		t.Fatalf("Search() = %+v, %v, want street 11", leg, ok)
	}
	if s, _ := l.Street(10); s.State != layout.LockFree {
		t.Errorf("street 10 state = %v, want free after failed attempt", s.State)
	}
}

func TestSearchNothingLeavesLayoutUnchanged(t *testing.T) {
	l := newStation(t)
	l.ReserveTrack(2, 8)
	l.ReserveTrack(3, 8)
	c := NewCoordinator(l, PolicyFirst)

	if _, ok := c.Search(Request{Loco: 7, From: 1}); ok {
		t.Fatal("Search() should find nothing")
	}
	for _, s := range l.Streets() {
		if s.State != layout.LockFree {
			t.Errorf("street %d state = %v, want free", s.ID, s.State)
		}
	}
	if d, _ := l.Device(5); d.Lock != layout.DeviceFree {
		t.Errorf("device lock = %v, want free", d.Lock)
	}
}

func TestSearchLongestUnused(t *testing.T) {
	l := newStation(t)
	c := NewCoordinator(l, PolicyLongestUnused)

	leg, ok := c.Search(Request{Loco: 7, From: 1})
	if !ok || leg.Street != 10 {
		t.Fatalf("first Search() = %+v, %v, want street 10", leg, ok)
	}
	l.ReleaseStreet(10, 7)
	l.ReleaseTrack(2, 7)

	// Street 10 now has a LastUsed time, street 11 has none.
	leg, ok = c.Search(Request{Loco: 7, From: 1})
	if !ok || leg.Street != 11 {
		t.Errorf("second Search() = %+v, %v, want street 11", leg, ok)
	}
}

func TestRandomPolicyDeterministicWithSeed(t *testing.T) {
	l := newStation(t)
	a := NewCoordinator(l, PolicyRandom)
	b := NewCoordinator(l, PolicyRandom)
	a.SetSeed(42)
	b.SetSeed(42)

	for i := 0; i < 10; i++ {
		req := Request{Loco: 7, From: 1, AllowTurn: true}
		ga, gb := ids(a.Candidates(req)), ids(b.Candidates(req))
		if len(ga) != 3 || len(gb) != 3 {
			t.Fatalf("candidates = %v, %v", ga, gb)
		}
		for j := range ga {
			if ga[j] != gb[j] {
				t.Fatalf("same seed gave %v and %v", ga, gb)
			}
		}
	}
}

func TestRequestPolicyOverride(t *testing.T) {
	l := newStation(t)
	c := NewCoordinator(l, PolicyRandom)
	req := Request{Loco: 7, From: 1, AllowTurn: true, Policy: PolicyFirst}
	got := ids(c.Candidates(req))
	if len(got) != 3 || got[0] != 10 || got[1] != 11 || got[2] != 12 {
		t.Errorf("Candidates(first) = %v, want [10 11 12]", got)
	}
}

func TestConcurrentSearchSingleStreet(t *testing.T) {
	for round := 0; round < 50; round++ {
		l := layout.New(nopDispatcher{})
		l.AddTrack(layout.NewTrack(1, "shared", 0))
		l.AddTrack(layout.NewTrack(2, "target", 0))
		l.AddStreet(&layout.Street{ID: 1, FromTrack: 1, ToTrack: 2, Automode: true})
		c := NewCoordinator(l, PolicyFirst)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for loco := layout.LocoID(1); loco <= 2; loco++ {
			wg.Add(1)
			go func(loco layout.LocoID) {
				defer wg.Done()
				if _, ok := c.Search(Request{Loco: loco, From: 1, AllowTurn: true}); ok {
					wins.Add(1)
				}
			}(loco)
		}
		wg.Wait()

		if got := wins.Load(); got != 1 {
			t.Fatalf("round %d: winners = %d, want 1", round, got)
		}
	}
}

// failingExecute wraps a layout and makes ExecuteStreet fail for one street.
type failingExecute struct {
	*layout.Layout
	fail layout.StreetID
}

func (f failingExecute) ExecuteStreet(id layout.StreetID, loco layout.LocoID) bool {
	if id == f.fail {
		return false
	}
	return f.Layout.ExecuteStreet(id, loco)
}

func TestSearchExecuteFailureRollsBack(t *testing.T) {
	l := newStation(t)
	c := NewCoordinator(failingExecute{Layout: l, fail: 10}, PolicyFirst)

	leg, ok := c.Search(Request{Loco: 7, From: 1})
	if !ok || leg.Street != 11 {
		t.Fatalf("Search() = %+v, %v, want street 11", leg, ok)
	}
	if owner := l.TrackOwner(2); owner != layout.LocoNone {
		t.Errorf("track 2 owner = %d, want none after rollback", owner)
	}
	if s, _ := l.Street(10); s.State != layout.LockFree {
		t.Errorf("street 10 state = %v, want free", s.State)
	}
}
