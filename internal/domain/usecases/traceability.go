package usecases

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// TraceRequirements checks every traceability link against the extracted requirements
// and computes coverage. Unknown references are an error; uncovered requirements are not.
// A URS without numbered requirements has nothing to trace against.
func TraceRequirements(tests []entities.TestCase, reqs []entities.Requirement) (entities.Coverage, error) {
	if len(reqs) == 0 {
		return entities.Coverage{}, nil
	}

	known := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		known[r.ID] = true
	}

	covered := make(map[string]bool)
	unknown := make(map[string]bool)
	for _, t := range tests {
		for _, id := range t.RequirementIDs {
			if known[id] {
				covered[id] = true
			} else {
				unknown[id] = true
			}
		}
	}

	if len(unknown) > 0 {
		ids := make([]string, 0, len(unknown))
		for id := range unknown {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return entities.Coverage{}, fmt.Errorf("%w: %s", ErrUnknownRequirement, strings.Join(ids, ", "))
	}

	cov := entities.Coverage{Covered: []string{}, Uncovered: []string{}}
	for _, r := range reqs {
		if covered[r.ID] {
			cov.Covered = append(cov.Covered, r.ID)
		} else {
			cov.Uncovered = append(cov.Uncovered, r.ID)
		}
	}
	cov.Ratio = float64(len(cov.Covered)) / float64(len(reqs))
	return cov, nil
}
