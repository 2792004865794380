package model

// CandidateMatch is a characterized factor scored against a query.
type CandidateMatch struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Tier is the confidence class of a transferred profile.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	TierNone   Tier = "none"
)

// ThresholdMode selects how the selection cutoff is chosen.
type ThresholdMode string

const (
	ThresholdStatic  ThresholdMode = "static"
	ThresholdDynamic ThresholdMode = "dynamic"
)

// ThresholdConfig is either a static cutoff in [0,1] or dynamic tiering.
type ThresholdConfig struct {
	Mode   ThresholdMode `json:"mode" yaml:"mode" mapstructure:"mode"`
	Cutoff float64       `json:"cutoff,omitempty" yaml:"cutoff" mapstructure:"cutoff"`
}

// StaticThreshold returns a static config with the given cutoff.
func StaticThreshold(cutoff float64) ThresholdConfig {
	return ThresholdConfig{Mode: ThresholdStatic, Cutoff: cutoff}
}

// DynamicThreshold returns a config that picks the cutoff from the tier policy.
func DynamicThreshold() ThresholdConfig {
	return ThresholdConfig{Mode: ThresholdDynamic}
}

// NoMatchReason explains why a selection is empty.
type NoMatchReason string

const (
	// NoMatchNone marks a selection that has matches.
	NoMatchNone NoMatchReason = ""
	// NoMatchNoSimilarFactor means no candidate cleared the cutoff.
	NoMatchNoSimilarFactor NoMatchReason = "no_similar_factor"
	// NoMatchUnclassified means the query's class could not be determined upstream.
	NoMatchUnclassified NoMatchReason = "unclassified_query"
)

// Message returns the user-facing text for a no-match reason.
func (r NoMatchReason) Message() string {
	switch r {
	case NoMatchNoSimilarFactor:
		return "no sufficiently similar factor found"
	case NoMatchUnclassified:
		return "unable to classify input"
	default:
		return ""
	}
}

// Selection is the ranked result of match selection.
type Selection struct {
	Matches []CandidateMatch `json:"matches"`
	Tier    Tier             `json:"tier"`
	Cutoff  float64          `json:"cutoff"`
	NoMatch NoMatchReason    `json:"no_match,omitempty"`
}

// Found reports whether at least one match was selected.
func (s Selection) Found() bool {
	return s.NoMatch == NoMatchNone && len(s.Matches) > 0
}

// Names returns the selected candidate names in rank order.
func (s Selection) Names() []string {
	names := make([]string, len(s.Matches))
	for i, m := range s.Matches {
		names[i] = m.Name
	}
	return names
}
