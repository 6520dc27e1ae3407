package agent

import (
	"sort"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// modalityPriority breaks ties at equal normalized score: text evidence is
// cheaper to verify than figures or formulas, so it sorts first.
func modalityPriority(m domain.Modality) int {
	switch m {
	case domain.ModalityText:
		return 0
	case domain.ModalityImage:
		return 1
	default:
		return 2
	}
}

// fuseModalities normalizes each modality's scores to [0,1] independently,
// interleaves by normalized score descending with the text tie-break, and
// caps the merged list at topK. The ordering is fully deterministic.
func fuseModalities(taskID string, lists [][]domain.ScoredChunk, topK int) []domain.Evidence {
	var merged []domain.Evidence
	seen := make(map[string]struct{})

	for _, hits := range lists {
		for _, hit := range normalizeScores(hits) {
			if _, dup := seen[hit.Chunk.ID]; dup {
				continue
			}
			seen[hit.Chunk.ID] = struct{}{}
			merged = append(merged, domain.Evidence{
				TaskID: taskID,
				Chunk:  hit.Chunk,
				Score:  hit.Score,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		pi, pj := modalityPriority(merged[i].Chunk.Modality), modalityPriority(merged[j].Chunk.Modality)
		if pi != pj {
			return pi < pj
		}
		if merged[i].Chunk.DocumentID != merged[j].Chunk.DocumentID {
			return merged[i].Chunk.DocumentID < merged[j].Chunk.DocumentID
		}
		if merged[i].Chunk.Seq != merged[j].Chunk.Seq {
			return merged[i].Chunk.Seq < merged[j].Chunk.Seq
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// normalizeScores min-max scales one modality's scores into [0,1]. A single
// hit, or hits with identical scores, normalize to 1.
func normalizeScores(hits []domain.ScoredChunk) []domain.ScoredChunk {
	if len(hits) == 0 {
		return hits
	}

	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, hit := range hits[1:] {
		if hit.Score < minScore {
			minScore = hit.Score
		}
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	out := make([]domain.ScoredChunk, len(hits))
	span := maxScore - minScore
	for i, hit := range hits {
		normalized := 1.0
		if span > 0 {
			normalized = (hit.Score - minScore) / span
		}
		out[i] = domain.ScoredChunk{Chunk: hit.Chunk, Score: normalized}
	}
	return out
}
