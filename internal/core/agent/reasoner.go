package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
)

var evidenceMarkerRe = regexp.MustCompile(`\[E(\d+)\]`)

// ReasonerConfig carries the tunable confidence penalties.
type ReasonerConfig struct {
	CoveragePenalty    float64
	ComparativePenalty float64
}

// Reasoner synthesizes a cited answer from evidence. Grounding is enforced
// after generation: sentences without a valid [E#] marker are dropped, so
// no claim survives without a citation regardless of model behavior.
type Reasoner struct {
	gateway ports.ModelGateway
	cfg     ReasonerConfig
}

func NewReasoner(gateway ports.ModelGateway, cfg ReasonerConfig) *Reasoner {
	if cfg.CoveragePenalty <= 0 || cfg.CoveragePenalty > 1 {
		cfg.CoveragePenalty = 0.5
	}
	if cfg.ComparativePenalty <= 0 || cfg.ComparativePenalty > 1 {
		cfg.ComparativePenalty = 0.7
	}
	return &Reasoner{gateway: gateway, cfg: cfg}
}

type answerPayload struct {
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning"`
}

func (r *Reasoner) Answer(
	ctx context.Context,
	task *domain.Task,
	retrieval *domain.RetrievalResult,
	feedback string,
) (*domain.Answer, error) {
	raw, err := r.gateway.Generate(ctx, buildAnswerPrompt(task.Question, retrieval.Evidence, feedback))
	if err != nil {
		return nil, err
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		slog.Warn("reasoner_parse_failed", "task", task.ID, "error", err)
		payload.Answer = raw
	}

	text, citations, freq := groundAnswer(payload.Answer, retrieval.Evidence)

	answer := &domain.Answer{
		TaskID:     task.ID,
		Text:       text,
		Citations:  citations,
		Confidence: r.confidence(task.Question, retrieval, citations, freq),
	}
	if retrieval.LowCoverage {
		answer.Caveats = append(answer.Caveats, "insufficient evidence: the store returned no matching content")
	}
	if text == "" {
		answer.Text = "The available evidence does not support an answer to this question."
		answer.Confidence = 0
		answer.Caveats = append(answer.Caveats, "all generated sentences were dropped as ungrounded")
	}
	return answer, nil
}

// groundAnswer keeps only sentences carrying at least one marker that
// resolves to supplied evidence, and returns citations ordered by first
// appearance plus the per-chunk citation frequency.
func groundAnswer(text string, evidence []domain.Evidence) (string, []domain.Citation, map[string]int) {
	var kept []string
	var citations []domain.Citation
	cited := make(map[string]struct{})
	freq := make(map[string]int)

	for _, sentence := range splitSentences(text) {
		markers := evidenceMarkerRe.FindAllStringSubmatch(sentence, -1)
		valid := false
		for _, m := range markers {
			idx, err := strconv.Atoi(m[1])
			if err != nil || idx < 1 || idx > len(evidence) {
				continue
			}
			valid = true
			chunk := evidence[idx-1].Chunk
			freq[chunk.ID]++
			if _, dup := cited[chunk.ID]; !dup {
				cited[chunk.ID] = struct{}{}
				citations = append(citations, domain.Citation{
					ChunkID:    chunk.ID,
					DocumentID: chunk.DocumentID,
					Page:       chunk.Page,
					Region:     chunk.Region,
				})
			}
		}
		if valid {
			kept = append(kept, sentence)
		}
	}

	return strings.Join(kept, " "), citations, freq
}

// confidence is the citation-frequency weighted average of the cited
// evidence scores, scaled down for low coverage and for comparative
// questions answered from a single piece of evidence.
func (r *Reasoner) confidence(
	question string,
	retrieval *domain.RetrievalResult,
	citations []domain.Citation,
	freq map[string]int,
) float64 {
	if len(citations) == 0 {
		return 0
	}

	scoreByChunk := make(map[string]float64, len(retrieval.Evidence))
	for _, ev := range retrieval.Evidence {
		scoreByChunk[ev.Chunk.ID] = ev.Score
	}

	var weighted, weights float64
	for id, count := range freq {
		weighted += scoreByChunk[id] * float64(count)
		weights += float64(count)
	}
	if weights == 0 {
		return 0
	}
	confidence := weighted / weights

	if retrieval.LowCoverage {
		confidence *= r.cfg.CoveragePenalty
	}
	if isComparative(question) && len(citations) < 2 {
		confidence *= r.cfg.ComparativePenalty
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

var comparativeHints = []string{
	" vs ", " vs. ", "versus", "compare", "comparison", "difference between",
	"better than", "worse than", "higher than", "lower than", "relative to",
}

func isComparative(question string) bool {
	return containsAny(strings.ToLower(question), comparativeHints)
}

// splitSentences cuts on sentence-final punctuation; trailing [E#] markers
// stay attached to their sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		b.WriteRune(runes[i])
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Pull citation markers following the terminator into the sentence.
		rest := string(runes[i+1:])
		if loc := leadingMarkers(rest); loc > 0 {
			b.WriteString(rest[:loc])
			i += len([]rune(rest[:loc]))
		}
		sentence := strings.TrimSpace(b.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		b.Reset()
	}
	if tail := strings.TrimSpace(b.String()); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func leadingMarkers(s string) int {
	n := 0
	for {
		rest := s[n:]
		skip := 0
		for skip < len(rest) && (rest[skip] == ' ' || rest[skip] == '\t') {
			skip++
		}
		loc := evidenceMarkerRe.FindStringIndex(rest[skip:])
		if loc == nil || loc[0] != 0 {
			return n
		}
		n += skip + loc[1]
	}
}
