package svr

// Resolver picks the score used when a request carries none.
type Resolver struct {
	s *Settings
}

// NewResolver returns a resolver over s.
func NewResolver(s *Settings) *Resolver {
	return &Resolver{s: s}
}

// Resolve returns the adgroup default, else the brand default, else the
// global default. It never fails.
func (r *Resolver) Resolve(brandID, adgroupID string, lba bool) float64 {
	if p, ok := r.s.AdgroupDefaults[adgroupID]; ok {
		return p.Pick(lba)
	}
	if p, ok := r.s.BrandDefaults[brandID]; ok {
		return p.Pick(lba)
	}
	return r.Floor(lba)
}

// Floor returns the global default.
func (r *Resolver) Floor(lba bool) float64 {
	if lba {
		return r.s.DefaultLBAScore
	}
	return r.s.DefaultNonLBAScore
}
