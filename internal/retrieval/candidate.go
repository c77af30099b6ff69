// Package retrieval implements the multi-stage hybrid retrieval pipeline for
// incident matching.
//
// A query flows through four progressively more expensive stages: a keyword
// filter (cheap, high recall), a semantic filter over summary-level vectors
// (cheap, moderate precision), a late-interaction scorer over detail-level
// representations (moderate cost, high precision), and a cross-encoder
// re-ranker applied only to a small top slice (highest cost, highest
// precision). The orchestrator merges the first-tier outputs, computes a
// weighted final score, classifies confidence, and explains each match with
// deterministic reasons. Scoring is fully deterministic; there is no
// generative step and therefore no hallucination risk.
package retrieval

// Candidate carries one incident through a single pipeline run, holding the
// score each stage assigned to it. A score of 0.0 means the stage has not
// evaluated this candidate; stages set their own score field and nothing else.
// FinalScore and MatchReasons are empty until the orchestrator's final step.
type Candidate struct {
	IncidentID string
	Title      string
	Payload    map[string]string

	KeywordScore         float64
	SemanticScore        float64
	LateInteractionScore float64
	RerankScore          float64

	FinalScore   float64
	MatchReasons []string
}

// Document is one ranked hit from a lexical or vector index collaborator.
type Document struct {
	ID      string
	Title   string
	Score   float64
	Payload map[string]string
}

func candidateFromDocument(doc Document) Candidate {
	return Candidate{
		IncidentID: doc.ID,
		Title:      doc.Title,
		Payload:    doc.Payload,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
