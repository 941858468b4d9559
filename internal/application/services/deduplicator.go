package services

import (
	"context"
	"strings"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
	"github.com/soberbookings/backend/pkg/geo"
	"github.com/soberbookings/backend/pkg/similarity"
)

// Duplicate rules, in evaluation order.
const (
	DuplicateByName      = "name"
	DuplicateByAddress   = "address"
	DuplicateByProximity = "proximity"
	DuplicateByPhone     = "phone"
	DuplicateByWebsite   = "website"
)

// DedupConfig holds the duplicate-detection thresholds. The defaults are
// empirical and not known to be optimal.
type DedupConfig struct {
	NameThreshold    float64
	AddressThreshold float64
	ProximityMiles   float64
	MinPhoneDigits   int
	WebsiteThreshold float64
}

// DefaultDedupConfig returns the thresholds used when none are configured.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		NameThreshold:    0.8,
		AddressThreshold: 0.7,
		ProximityMiles:   0.5,
		MinPhoneDigits:   10,
		WebsiteThreshold: 0.8,
	}
}

// Deduplicator removes supplemental candidates that describe a facility
// already present in the primary set. Primary candidates are never removed.
type Deduplicator struct {
	cfg DedupConfig
}

func NewDeduplicator(cfg DedupConfig) *Deduplicator {
	defaults := DefaultDedupConfig()
	if cfg.NameThreshold <= 0 {
		cfg.NameThreshold = defaults.NameThreshold
	}
	if cfg.AddressThreshold <= 0 {
		cfg.AddressThreshold = defaults.AddressThreshold
	}
	if cfg.ProximityMiles <= 0 {
		cfg.ProximityMiles = defaults.ProximityMiles
	}
	if cfg.MinPhoneDigits <= 0 {
		cfg.MinPhoneDigits = defaults.MinPhoneDigits
	}
	if cfg.WebsiteThreshold <= 0 {
		cfg.WebsiteThreshold = defaults.WebsiteThreshold
	}
	return &Deduplicator{cfg: cfg}
}

// Config returns the thresholds in effect.
func (d *Deduplicator) Config() DedupConfig {
	return d.cfg
}

// Dedupe returns the supplemental candidates that do not duplicate any
// primary candidate, in their original order. A supplemental candidate
// whose ID was already kept is dropped as well so IDs stay unique.
func (d *Deduplicator) Dedupe(ctx context.Context, primary, supplemental []entities.Candidate) []entities.Candidate {
	if len(supplemental) == 0 {
		return nil
	}

	logger := observability.LoggerFromContext(ctx)

	prepared := make([]dedupKey, len(primary))
	for i, p := range primary {
		prepared[i] = newDedupKey(p)
	}

	kept := make([]entities.Candidate, 0, len(supplemental))
	seen := make(map[string]struct{}, len(supplemental))
	for _, s := range supplemental {
		if _, dup := seen[s.ID()]; dup {
			logger.Debug().Str("candidate_id", s.ID()).Msg("dropping repeated supplemental id")
			continue
		}

		sk := newDedupKey(s)
		if match, rule, ok := d.firstDuplicate(prepared, sk); ok {
			logger.Debug().
				Str("candidate_id", s.ID()).
				Str("duplicate_of", match).
				Str("rule", rule).
				Msg("dropping supplemental duplicate")
			continue
		}

		seen[s.ID()] = struct{}{}
		kept = append(kept, s)
	}

	return kept
}

// Duplicate reports whether s represents the same facility as p and which
// rule matched first.
func (d *Deduplicator) Duplicate(p, s entities.Candidate) (bool, string) {
	rule, ok := d.match(newDedupKey(p), newDedupKey(s))
	return ok, rule
}

func (d *Deduplicator) firstDuplicate(primary []dedupKey, s dedupKey) (string, string, bool) {
	for _, p := range primary {
		if rule, ok := d.match(p, s); ok {
			return p.id, rule, true
		}
	}
	return "", "", false
}

// match checks the rules in order; the first hit wins.
func (d *Deduplicator) match(p, s dedupKey) (string, bool) {
	if p.name != "" && s.name != "" &&
		similarity.Similarity(p.name, s.name) >= d.cfg.NameThreshold {
		return DuplicateByName, true
	}

	if p.hasStreet && s.hasStreet &&
		similarity.Similarity(p.address, s.address) >= d.cfg.AddressThreshold {
		return DuplicateByAddress, true
	}

	if p.city != "" && p.state != "" && p.city == s.city && p.state == s.state &&
		p.point != nil && s.point != nil &&
		geo.DistanceMiles(*p.point, *s.point) < d.cfg.ProximityMiles {
		return DuplicateByProximity, true
	}

	if len(p.phone) >= d.cfg.MinPhoneDigits && p.phone == s.phone {
		return DuplicateByPhone, true
	}

	if p.website != "" && s.website != "" &&
		similarity.Similarity(p.website, s.website) >= d.cfg.WebsiteThreshold {
		return DuplicateByWebsite, true
	}

	return "", false
}

// dedupKey holds the normalized comparison fields of one candidate.
type dedupKey struct {
	id        string
	name      string
	address   string
	hasStreet bool
	city      string
	state     string
	point     *geo.Point
	phone     string
	website   string
}

func newDedupKey(c entities.Candidate) dedupKey {
	k := dedupKey{
		id:        c.ID(),
		name:      similarity.NormalizeText(c.Name),
		address:   similarity.NormalizeText(c.Address.Format()),
		hasStreet: strings.TrimSpace(c.Address.Street) != "",
		city:      similarity.NormalizeText(c.Address.City),
		state:     similarity.NormalizeText(c.Address.State),
		phone:     similarity.DigitsOnly(c.Contact.Phone),
		website:   strings.ToLower(strings.TrimSpace(c.Contact.Website)),
	}
	if c.Coordinates != nil {
		k.point = &geo.Point{Latitude: c.Coordinates.Latitude, Longitude: c.Coordinates.Longitude}
	}
	return k
}
