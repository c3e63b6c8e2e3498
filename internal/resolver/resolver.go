// Package resolver answers the on-demand "when is my next outage" query:
// a fresh fetch+extract, exact-subgroup match first, group-level fallback
// second, diagnostics when neither hits. No caching, no writes.
package resolver

import (
	"context"
	"strings"

	"zapbot/internal/schedule"
	"zapbot/pkg/logx"
)

type MatchKind int

const (
	// MatchExact: an entry for the recipient's full subgroup key.
	MatchExact MatchKind = iota
	// MatchGroup: no exact entry, but one exists for the recipient's group
	// (approximate result, flagged as such to the user).
	MatchGroup
	// MatchNone: nothing for the subgroup or its group on the page.
	MatchNone
)

type Result struct {
	Kind MatchKind

	// Set for MatchExact and MatchGroup.
	Subgroup string // the matched entry's own subgroup key
	Start    string
	End      string

	// Set for MatchNone: every distinct subgroup key seen on the page.
	SeenSubgroups []string
}

type TextSource interface {
	FetchText(ctx context.Context) (string, error)
}

type Resolver struct {
	source TextSource
	log    logx.Logger
}

func New(source TextSource, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{source: source, log: log}
}

// Next finds the first interval (document order) for the given subscription
// key. groupID may be empty; it is then derived from subgroupKey.
func (r *Resolver) Next(ctx context.Context, subgroupKey, groupID string) (Result, error) {
	subgroupKey = strings.TrimSpace(subgroupKey)
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		groupID = schedule.GroupOf(subgroupKey)
	}

	text, err := r.source.FetchText(ctx)
	if err != nil {
		return Result{}, err
	}
	entries := schedule.Extract(text)

	seen := schedule.Subgroups(entries)
	r.log.Debug("subgroups on page", logx.String("subgroups", strings.Join(seen, ", ")))

	for _, e := range entries {
		if e.Subgroup == subgroupKey {
			return Result{Kind: MatchExact, Subgroup: e.Subgroup, Start: e.Start, End: e.End}, nil
		}
	}

	if groupID != "" {
		prefix := groupID + "."
		for _, e := range entries {
			if e.Subgroup == groupID || strings.HasPrefix(e.Subgroup, prefix) {
				return Result{Kind: MatchGroup, Subgroup: e.Subgroup, Start: e.Start, End: e.End}, nil
			}
		}
	}

	return Result{Kind: MatchNone, SeenSubgroups: seen}, nil
}
