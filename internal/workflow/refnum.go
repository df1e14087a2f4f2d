package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"corrflow/internal/apperror"
	"corrflow/internal/model"
	"corrflow/internal/repository"
)

// refSuffixAttempts bounds how often a colliding reference number is
// regenerated before the operation gives up.
const refSuffixAttempts = 5

// ReferenceGenerator produces reference numbers of the form
// NPA/ADM/2026/081234: org code, division code, year, then month and a
// four digit suffix. The suffix is random, so uniqueness is enforced by
// the store and collisions are retried with a fresh suffix.
type ReferenceGenerator struct {
	orgCode string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewReferenceGenerator(orgCode string) *ReferenceGenerator {
	return &ReferenceGenerator{
		orgCode: orgCode,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *ReferenceGenerator) next(divisionCode string, now time.Time) string {
	g.mu.Lock()
	suffix := 1000 + g.rng.Intn(9000)
	g.mu.Unlock()
	return fmt.Sprintf("%s/%s/%d/%02d%04d", g.orgCode, divisionCode, now.Year(), int(now.Month()), suffix)
}

// CreateWithReference persists a correspondence under a freshly generated
// reference number, regenerating the suffix on collision.
func (g *ReferenceGenerator) CreateWithReference(ctx context.Context, repo repository.Repository, c model.Correspondence, divisionCode string) (model.Correspondence, error) {
	now := time.Now()
	for attempt := 0; attempt < refSuffixAttempts; attempt++ {
		c.ReferenceNumber = g.next(divisionCode, now)
		err := repo.CreateCorrespondence(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return model.Correspondence{}, fmt.Errorf("failed to create correspondence: %w", err)
		}
	}
	return model.Correspondence{}, apperror.Conflict("could not allocate a unique reference number after %d attempts", refSuffixAttempts)
}
