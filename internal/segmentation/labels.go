package segmentation

import "strings"

// Canonical region names required by the review bootstrap.
const (
	ProstateLabel = "Prostate"
	FasciaLabel   = "Fascia"
)

// RequiredLabels returns the regions a fresh segmentation starts with, in
// creation order.
func RequiredLabels() []string {
	return []string{ProstateLabel, FasciaLabel}
}

// Kind classifies a region name for the bootstrap policy.
type Kind int

const (
	KindOther Kind = iota
	KindProstate
	KindFascia
)

// Classify matches the full region name case-insensitively. Names that are
// not exactly a prostate or fascia label count as other and get hidden by the
// bootstrap.
func Classify(name string) Kind {
	switch strings.ToLower(name) {
	case "prostate":
		return KindProstate
	case "fascia":
		return KindFascia
	default:
		return KindOther
	}
}
