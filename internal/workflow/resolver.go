package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"corrflow/internal/model"
	"corrflow/internal/organisation"
)

// Bucket orders suggestion groups. Assistants under an active delegation
// outrank hierarchy candidates regardless of grade.
type Bucket int

const (
	BucketAssistant Bucket = iota
	BucketHierarchy
)

type Candidate struct {
	User   model.User `json:"user"`
	Bucket Bucket     `json:"bucket"`
}

// Suggestions is the resolver output. Fallback is set when the hierarchy
// produced no candidates and the full active roster was returned instead.
type Suggestions struct {
	Candidates []Candidate     `json:"candidates"`
	Direction  model.Direction `json:"direction"`
	Fallback   bool            `json:"fallback"`
}

// Suggested returns the most-preferred candidate, if any.
func (s Suggestions) Suggested() (model.User, bool) {
	if len(s.Candidates) == 0 {
		return model.User{}, false
	}
	return s.Candidates[0].User, true
}

// Resolver computes the ranked set of valid next recipients for an actor
// routing a correspondence through the grade hierarchy.
type Resolver struct {
	directory organisation.Directory
}

func NewResolver(directory organisation.Directory) *Resolver {
	return &Resolver{directory: directory}
}

// EffectiveDirection applies the apex constraint: the top grade only ever
// routes downward, every other grade keeps its chosen direction.
func EffectiveDirection(actor model.User, requested model.Direction) model.Direction {
	if organisation.IsApex(actor.GradeLevel) {
		return model.DirectionDownward
	}
	return requested
}

// Suggest returns valid next recipients for the actor, most-preferred
// first. Assistants from an active delegation are surfaced ahead of the
// hierarchy candidates. When the hierarchy yields nothing and no assistant
// is available, the full active roster is returned with Fallback set so a
// recipient can always be chosen.
func (r *Resolver) Suggest(ctx context.Context, actor model.User, direction model.Direction, assistants []model.User) (Suggestions, error) {
	effective := EffectiveDirection(actor, direction)

	activeUsers, err := r.directory.ListActiveUsers(ctx)
	if err != nil {
		return Suggestions{}, fmt.Errorf("failed to list active users: %w", err)
	}

	var hierarchy []model.User
	switch effective {
	case model.DirectionDownward:
		hierarchy = r.downwardCandidates(actor, activeUsers)
	case model.DirectionUpward:
		hierarchy, err = r.upwardCandidates(ctx, actor, activeUsers)
		if err != nil {
			return Suggestions{}, err
		}
	}

	seen := make(map[uuid.UUID]struct{})
	var candidates []Candidate
	for _, a := range assistants {
		if a.ID == actor.ID || !a.Active {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		candidates = append(candidates, Candidate{User: a, Bucket: BucketAssistant})
	}
	for _, u := range hierarchy {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		candidates = append(candidates, Candidate{User: u, Bucket: BucketHierarchy})
	}

	fallback := false
	if len(candidates) == 0 {
		fallback = true
		for _, u := range activeUsers {
			if u.ID == actor.ID {
				continue
			}
			candidates = append(candidates, Candidate{User: u, Bucket: BucketHierarchy})
		}
	}

	sortCandidates(candidates, effective)

	return Suggestions{Candidates: candidates, Direction: effective, Fallback: fallback}, nil
}

// downwardCandidates selects active users strictly below the actor's rank.
// The apex grade sees the whole organization; everyone else stays inside
// their own division.
func (r *Resolver) downwardCandidates(actor model.User, activeUsers []model.User) []model.User {
	actorRank := organisation.RankOf(actor.GradeLevel)
	apex := organisation.IsApex(actor.GradeLevel)

	var out []model.User
	for _, u := range activeUsers {
		if u.ID == actor.ID {
			continue
		}
		if organisation.RankOf(u.GradeLevel) >= actorRank {
			continue
		}
		if !apex {
			if actor.DivisionID == nil || u.DivisionID == nil || *u.DivisionID != *actor.DivisionID {
				continue
			}
		}
		out = append(out, u)
	}
	return out
}

// upwardCandidates selects active users strictly above the actor's rank who
// share the actor's division or directorate. A candidate's directorate is
// derived through their division when not set directly.
func (r *Resolver) upwardCandidates(ctx context.Context, actor model.User, activeUsers []model.User) ([]model.User, error) {
	actorRank := organisation.RankOf(actor.GradeLevel)
	actorDirectorate, err := organisation.DirectorateOf(ctx, r.directory, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to derive actor directorate: %w", err)
	}

	var out []model.User
	for _, u := range activeUsers {
		if u.ID == actor.ID {
			continue
		}
		if organisation.RankOf(u.GradeLevel) <= actorRank {
			continue
		}
		if actor.DivisionID != nil && u.DivisionID != nil && *u.DivisionID == *actor.DivisionID {
			out = append(out, u)
			continue
		}
		if actorDirectorate == nil {
			continue
		}
		candidateDirectorate, err := organisation.DirectorateOf(ctx, r.directory, u)
		if err != nil {
			return nil, fmt.Errorf("failed to derive candidate directorate: %w", err)
		}
		if candidateDirectorate != nil && *candidateDirectorate == *actorDirectorate {
			out = append(out, u)
		}
	}
	return out, nil
}

// sortCandidates imposes a deterministic order: bucket first, then grade
// distance (downward wants the highest remaining grade first, upward the
// nearest grade above), then name.
func sortCandidates(candidates []Candidate, direction model.Direction) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Bucket != candidates[j].Bucket {
			return candidates[i].Bucket < candidates[j].Bucket
		}
		ri := organisation.RankOf(candidates[i].User.GradeLevel)
		rj := organisation.RankOf(candidates[j].User.GradeLevel)
		if ri != rj {
			if direction == model.DirectionUpward {
				return ri < rj
			}
			return ri > rj
		}
		return strings.ToLower(candidates[i].User.Name) < strings.ToLower(candidates[j].User.Name)
	})
}
