package links

import (
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/VictoriaMetrics/metrics"
)

var (
	reconcileDriftTotal = metrics.NewCounter("keel_links_reconcile_drift_total")
	repairAddedTotal    = metrics.NewCounter("keel_links_repair_added_total")
	repairRemovedTotal  = metrics.NewCounter("keel_links_repair_removed_total")
)

func (g *graphImpl) Reconcile() (Report, error) {
	report := Report{
		MissingReverse:  []ReverseEntry{},
		DanglingReverse: []ReverseEntry{},
		MissingTriples:  []string{},
		OrphanTriples:   []string{},
	}

	all, err := g.All()
	if err != nil {
		return report, err
	}
	known := make(map[string]Link, len(all))
	for _, link := range all {
		known[link.ID] = link
	}

	// Pass 1: every canonical link must have both reverse entries and its
	// triple marker.
	memberCache := map[string]map[string]struct{}{}
	membersOf := func(setKey string) (map[string]struct{}, error) {
		if cached, ok := memberCache[setKey]; ok {
			return cached, nil
		}
		members, _, err := g.store.SMembers(setKey)
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(members))
		for _, m := range members {
			set[m] = struct{}{}
		}
		memberCache[setKey] = set
		return set, nil
	}

	for _, link := range all {
		for _, ref := range []struct{ setKey string }{
			{keys.LinkReverse(string(link.Source.Type), link.Source.ID)},
			{keys.LinkReverse(string(link.Target.Type), link.Target.ID)},
		} {
			members, err := membersOf(ref.setKey)
			if err != nil {
				return report, err
			}
			if _, ok := members[link.ID]; !ok {
				report.MissingReverse = append(report.MissingReverse, ReverseEntry{
					SetKey: ref.setKey,
					LinkID: link.ID,
				})
			}
		}

		tk := tripleKey(link.Type, link.Source, link.Target)
		marker, found, err := g.store.Get(tk)
		if err != nil {
			return report, err
		}
		if !found || string(marker) != link.ID {
			report.MissingTriples = append(report.MissingTriples, link.ID)
		}
	}

	// Pass 2: every reverse entry must point to an existing canonical link.
	reverseSets, err := g.store.ScanPrefix(keys.LinkReverseScanPrefix)
	if err != nil {
		return report, err
	}
	for _, setKey := range reverseSets {
		members, err := membersOf(setKey)
		if err != nil {
			return report, err
		}
		for id := range members {
			if _, ok := known[id]; !ok {
				report.DanglingReverse = append(report.DanglingReverse, ReverseEntry{
					SetKey: setKey,
					LinkID: id,
				})
			}
		}
	}

	// Pass 3: every triple marker must belong to an existing canonical link.
	tripleKeys, err := g.store.ScanPrefix(keys.LinkTripleScanPrefix)
	if err != nil {
		return report, err
	}
	for _, tk := range tripleKeys {
		marker, found, err := g.store.Get(tk)
		if err != nil {
			return report, err
		}
		if !found {
			continue
		}
		link, ok := known[string(marker)]
		if !ok || tripleKey(link.Type, link.Source, link.Target) != tk {
			report.OrphanTriples = append(report.OrphanTriples, tk)
		}
	}

	drift := len(report.MissingReverse) + len(report.DanglingReverse) +
		len(report.MissingTriples) + len(report.OrphanTriples)
	reconcileDriftTotal.Add(drift)
	if drift > 0 {
		log.Warningf("link reconcile found %d drifted entries", drift)
	}
	return report, nil
}

func (g *graphImpl) Repair(apply bool) (RepairCounts, error) {
	report, err := g.Reconcile()
	if err != nil {
		return RepairCounts{}, err
	}

	counts := RepairCounts{
		Added:   len(report.MissingReverse) + len(report.MissingTriples),
		Removed: len(report.DanglingReverse) + len(report.OrphanTriples),
	}
	if !apply {
		return counts, nil
	}

	// Every correction is individually idempotent, so a failure part-way
	// leaves a partially repaired graph that the next run converges further.
	for _, e := range report.MissingReverse {
		if err := g.store.SAdd(e.SetKey, e.LinkID); err != nil {
			return counts, err
		}
	}
	for _, id := range report.MissingTriples {
		link, loaded, err := g.Get(id)
		if err != nil {
			return counts, err
		}
		if !loaded {
			continue
		}
		if err := g.store.Set(tripleKey(link.Type, link.Source, link.Target), []byte(id)); err != nil {
			return counts, err
		}
	}
	for _, e := range report.DanglingReverse {
		if err := g.store.SRem(e.SetKey, e.LinkID); err != nil {
			return counts, err
		}
	}
	for _, tk := range report.OrphanTriples {
		if err := g.store.Delete(tk); err != nil {
			return counts, err
		}
	}

	repairAddedTotal.Add(counts.Added)
	repairRemovedTotal.Add(counts.Removed)
	return counts, nil
}
