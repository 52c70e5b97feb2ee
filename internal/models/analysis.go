package models

// AnalysisResult is what the analysis gateway hands back for a single item.
// UsedRemote tells callers whether the remote provider produced it.
type AnalysisResult struct {
	Summary            string
	Sentiment          Sentiment
	Keywords           []string
	ReadingTimeSeconds int
	UsedRemote         bool
}

// RemoteAnalysis is the validated payload returned by a remote provider.
type RemoteAnalysis struct {
	Summary   string    `json:"summary" validate:"required"`
	Sentiment Sentiment `json:"sentiment" validate:"required,oneof=positive negative neutral"`
	Keywords  []string  `json:"keywords" validate:"required,min=1,dive,required"`
}
