package model

// RouteDecision records how a message was assigned to an extraction branch.
type RouteDecision struct {
	SelectedBranchID   string  `json:"selected_branch_id"`
	ClassifierBranchID string  `json:"classifier_branch_id"`
	Confidence         float64 `json:"confidence"`
	Reason             string  `json:"reason"`
	ForcedByDetector   bool    `json:"forced_by_detector"`
	UsedFallback       bool    `json:"used_fallback"`
}
