package writer

import (
	"fmt"
	"strings"

	"pmt/internal/services"
)

// MergePolicy decides what happens when a target entity with the same
// identifier already exists with different content.
type MergePolicy string

const (
	MergeFail   MergePolicy = "fail"
	MergeSkip   MergePolicy = "skip"
	MergeUpdate MergePolicy = "update"
)

// ParseMergePolicy accepts fail, skip, or update. Empty selects fail.
func ParseMergePolicy(value string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", MergeFail:
		return MergeFail, nil
	case MergeSkip:
		return MergeSkip, nil
	case MergeUpdate:
		return MergeUpdate, nil
	default:
		return "", services.Wrap(services.ErrTargetConfig, "writer", "merge policy",
			fmt.Sprintf("unsupported value %q (want fail, skip, or update)", value), nil)
	}
}

// Decide maps an identifier lookup to an outcome. Identical content is always
// skipped so repeated writes are idempotent.
func (p MergePolicy) Decide(kind Kind, id string, exists, same bool) (Outcome, error) {
	switch {
	case !exists:
		return Created, nil
	case same:
		return Skipped, nil
	}
	switch p {
	case MergeSkip:
		return Skipped, nil
	case MergeUpdate:
		return Updated, nil
	default:
		return "", services.Wrap(services.ErrTargetConflict, string(kind), id,
			"existing entity differs and merge policy is fail", nil)
	}
}
