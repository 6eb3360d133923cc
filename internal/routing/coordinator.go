package routing

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
)

// Policy is the order in which candidate streets are tried.
type Policy string

// Selection policies.
const (
	PolicyFirst         Policy = "first"
	PolicyRandom        Policy = "random"
	PolicyLongestUnused Policy = "longest_unused"
)

// ParsePolicy parses a policy name. Empty means PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFirst, nil
	case PolicyFirst, PolicyRandom, PolicyLongestUnused:
		return p, nil
	default:
		return PolicyFirst, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Logger is the logging interface used by the routing package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Layout is what the coordinator needs from the layout tables.
type Layout interface {
	StreetsFrom(track layout.TrackID) []layout.StreetSnapshot
	TrackDirection(track layout.TrackID) hardware.Orientation
	DeviceHardLockedByOther(device layout.DeviceID, loco layout.LocoID) bool
	ReserveStreet(street layout.StreetID, loco layout.LocoID) bool
	LockStreet(street layout.StreetID, loco layout.LocoID) bool
	ExecuteStreet(street layout.StreetID, loco layout.LocoID) bool
	RollbackStreet(street layout.StreetID, loco layout.LocoID)
}

// Request describes one destination search.
type Request struct {
	Loco layout.LocoID
	From layout.TrackID
	// AllowTurn permits streets that leave the track on the side opposite to
	// the one the loco faces. Only a standing train may turn.
	AllowTurn bool
	Length    uint32
	Commuter  bool
	// Policy overrides the coordinator default when set.
	Policy Policy
}

// Leg is a street that was reserved, locked and executed for a loco.
type Leg struct {
	Street        layout.StreetID
	Name          string
	From          layout.TrackID
	To            layout.TrackID
	FromDirection hardware.Orientation
	ToDirection   hardware.Orientation
	Triggers      layout.Triggers
}

// Coordinator enumerates candidate streets and commits the first one that
// can be fully acquired.
//
// Thread Safety: All methods are safe for concurrent use. Two locos searching
// at once race on the layout's reservation protocol, never on coordinator state.
type Coordinator struct {
	layout Layout
	policy Policy
	logger Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewCoordinator creates a coordinator with the given default policy.
func NewCoordinator(l Layout, policy Policy) *Coordinator {
	if policy == "" {
		policy = PolicyFirst
	}
	return &Coordinator{
		layout: l,
		policy: policy,
		logger: noopLogger{},
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// SetSeed makes PolicyRandom deterministic.
func (c *Coordinator) SetSeed(seed uint64) {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	c.rng = rand.New(rand.NewPCG(seed, seed))
}

// Policy returns the default policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Candidates returns the streets usable for req in the order they would be
// tried. Nothing is reserved.
func (c *Coordinator) Candidates(req Request) []layout.StreetSnapshot {
	streets := c.layout.StreetsFrom(req.From)
	facing := c.layout.TrackDirection(req.From)

	out := make([]layout.StreetSnapshot, 0, len(streets))
	for _, s := range streets {
		if c.usable(req, facing, s) {
			out = append(out, s)
		}
	}

	policy := req.Policy
	if policy == "" {
		policy = c.policy
	}
	c.order(policy, out)
	return out
}

func (c *Coordinator) usable(req Request, facing hardware.Orientation, s layout.StreetSnapshot) bool {
	if !s.Automode {
		return false
	}
	if !req.AllowTurn && s.FromDirection != facing {
		return false
	}
	if !s.Fits(req.Length, req.Commuter) {
		return false
	}
	for _, r := range s.Relations {
		if c.layout.DeviceHardLockedByOther(r.Device, req.Loco) {
			return false
		}
	}
	return true
}

func (c *Coordinator) order(policy Policy, streets []layout.StreetSnapshot) {
	switch policy {
	case PolicyRandom:
		c.rngMu.Lock()
		c.rng.Shuffle(len(streets), func(i, j int) {
			streets[i], streets[j] = streets[j], streets[i]
		})
		c.rngMu.Unlock()
	case PolicyLongestUnused:
		sort.SliceStable(streets, func(i, j int) bool {
			return streets[i].LastUsed.Before(streets[j].LastUsed)
		})
	}
}

// Search tries the candidates for req in policy order. For each it runs
// reserve, lock and execute; on any failure the street is rolled back and
// the next candidate is tried. It reports false when nothing could be
// acquired, leaving the layout as it was.
func (c *Coordinator) Search(req Request) (Leg, bool) {
	if req.Loco == layout.LocoNone {
		return Leg{}, false
	}
	candidates := c.Candidates(req)
	for _, s := range candidates {
		if !c.layout.ReserveStreet(s.ID, req.Loco) {
			continue
		}
		if !c.layout.LockStreet(s.ID, req.Loco) {
			c.layout.RollbackStreet(s.ID, req.Loco)
			continue
		}
		if !c.layout.ExecuteStreet(s.ID, req.Loco) {
			c.layout.RollbackStreet(s.ID, req.Loco)
			continue
		}

		c.logger.Debug("street acquired",
			"loco", req.Loco,
			"street", s.ID,
			"from", s.FromTrack,
			"to", s.ToTrack,
		)
		return Leg{
			Street:        s.ID,
			Name:          s.Name,
			From:          s.FromTrack,
			To:            s.ToTrack,
			FromDirection: s.FromDirection,
			ToDirection:   s.ToDirection,
			Triggers:      s.Triggers,
		}, true
	}

	c.logger.Debug("no street available",
		"loco", req.Loco,
		"track", req.From,
		"candidates", len(candidates),
	)
	return Leg{}, false
}
