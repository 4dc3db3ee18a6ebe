package model

// NoScore marks a request that carries no observed SVR. Any negative score is
// treated the same way.
const NoScore = -1.0

// NoPacing marks a request without a pacing signal.
const NoPacing = -1.0

// Shape selects what the engine returns for a request.
type Shape string

const (
	// ShapeCalibrated runs the model quantile through the calibration curve,
	// cutoff, and cap. The zero value behaves the same way.
	ShapeCalibrated Shape = "calibrated"
	// ShapeRaw returns the per-entity model output unchanged.
	ShapeRaw Shape = "raw"
)

// IsRaw reports whether the shape requests raw model output.
func (s Shape) IsRaw() bool {
	return s == ShapeRaw
}

// Mode identifies the entity a raw-shape request is keyed by.
type Mode string

const (
	ModeBrand         Mode = "brand"
	ModeLocationGroup Mode = "location_group"
)

// Output names one of the values a scoring model can emit for a tag.
type Output string

const (
	OutputQuantile   Output = "quantile"
	OutputMultiplier Output = "multiplier"
	OutputCPSVR      Output = "cpsvr"
)

// ScorePair holds the non-LBA and LBA variants of a default score.
type ScorePair struct {
	NonLBA float64 `json:"nonlba" yaml:"nonlba"`
	LBA    float64 `json:"lba" yaml:"lba"`
}

// Pick returns the LBA value when lba is set, otherwise the non-LBA value.
func (p ScorePair) Pick(lba bool) float64 {
	if lba {
		return p.LBA
	}
	return p.NonLBA
}

// Request is a single bid-multiplier lookup.
type Request struct {
	BrandID   string  `json:"brand_id"`
	AdgroupID string  `json:"adgroup_id"`
	Score     float64 `json:"observed_svr"`
	Pacing    float64 `json:"pacing"`

	// Raw-shape fields. EntityID is looked up under Mode.
	Shape    Shape  `json:"shape,omitempty"`
	Mode     Mode   `json:"mode,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	Output   Output `json:"output,omitempty"`
}

// NewRequest builds a calibrated request with no pacing signal.
func NewRequest(brandID, adgroupID string, score float64) Request {
	return Request{
		BrandID:   brandID,
		AdgroupID: adgroupID,
		Score:     score,
		Pacing:    NoPacing,
		Shape:     ShapeCalibrated,
	}
}

// WithPacing returns a copy of r carrying the given pacing signal.
func (r Request) WithPacing(pacing float64) Request {
	r.Pacing = pacing
	return r
}
