package retrieval

// Strong-signal thresholds per stage. A stage whose score exceeds its
// threshold contributes one reason string to the explanation.
const (
	strongKeywordScore         = 0.8
	strongSemanticScore        = 0.9
	strongLateInteractionScore = 0.9
	strongRerankScore          = 0.9
)

// MatchReasons produces the human-readable explanation for a candidate from
// its per-stage scores. Reasons are additive and emitted in fixed stage order
// (keyword, semantic, late interaction, rerank), so identical scores always
// yield identical explanations.
func MatchReasons(c Candidate) []string {
	var reasons []string
	if c.KeywordScore > strongKeywordScore {
		reasons = append(reasons, "strong keyword match")
	}
	if c.SemanticScore > strongSemanticScore {
		reasons = append(reasons, "high semantic similarity")
	}
	if c.LateInteractionScore > strongLateInteractionScore {
		reasons = append(reasons, "token-level precision match")
	}
	if c.RerankScore > strongRerankScore {
		reasons = append(reasons, "cross-encoder verified")
	}
	return reasons
}
