// Package scoring defines the scoring-model boundary the engine calls into
// and ships the reference catalog model.
package scoring

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saturn/internal/model"
)

// Sentinel errors returned by Predict.
var (
	ErrNoTag    = eris.New("scoring: no entry for tag path")
	ErrNoOutput = eris.New("scoring: entry has no such output")
	ErrInput    = eris.New("scoring: feature vector too short")
)

// Kind is the level a tag addresses.
type Kind string

const (
	KindAdgroup       Kind = "adgroup"
	KindBrand         Kind = "brand"
	KindLocationGroup Kind = "location_group"
)

// Tag addresses one entry of a catalog.
type Tag struct {
	Kind Kind
	ID   string
}

func (t Tag) String() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.ID)
}

// Adgroup returns an adgroup tag.
func Adgroup(id string) Tag { return Tag{Kind: KindAdgroup, ID: id} }

// Brand returns a brand tag.
func Brand(id string) Tag { return Tag{Kind: KindBrand, ID: id} }

// LocationGroup returns a location-group tag.
func LocationGroup(id string) Tag { return Tag{Kind: KindLocationGroup, ID: id} }

// KindForMode maps a raw-shape request mode onto a tag kind.
func KindForMode(m model.Mode) (Kind, error) {
	switch m {
	case model.ModeBrand:
		return KindBrand, nil
	case model.ModeLocationGroup:
		return KindLocationGroup, nil
	default:
		return "", eris.Errorf("scoring: unknown mode %q", m)
	}
}

// Model is a loaded scoring model.
//
// Predict evaluates output for the feature vector x. The path is ordered
// most-specific-last (for example brand then adgroup) and is searched from
// the end.
type Model interface {
	HasTag(tag Tag) bool
	Predict(x []float64, output model.Output, path ...Tag) (float64, error)
}
