package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCIMUSE_CONFIG", "")
	t.Setenv("SCIMUSE_EMBED_MODEL", "")
	t.Setenv("SCIMUSE_EMBED_DIM", "")
	t.Setenv("SCIMUSE_RETRIEVAL_TOP_K", "")
	t.Setenv("SCIMUSE_REVIEW_MAX_RETRY", "")
	t.Setenv("SCIMUSE_COVERAGE_PENALTY", "")
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EmbedModel != "text-embedding-3-small" {
		t.Fatalf("expected default embed model, got %q", cfg.EmbedModel)
	}
	if cfg.EmbedDim != 1536 {
		t.Fatalf("expected default embed dim 1536, got %d", cfg.EmbedDim)
	}
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.ReviewMaxRetry != 2 {
		t.Fatalf("expected default review max retry 2, got %d", cfg.ReviewMaxRetry)
	}
	if cfg.CoveragePenalty != 0.5 {
		t.Fatalf("expected default coverage penalty 0.5, got %f", cfg.CoveragePenalty)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCIMUSE_CONFIG", "")
	t.Setenv("SCIMUSE_EMBED_DIM", "768")
	t.Setenv("SCIMUSE_RETRIEVAL_TOP_K", "8")
	t.Setenv("SCIMUSE_MAX_SUB_TASKS", "4")
	t.Setenv("SCIMUSE_REVISE_PENALTY", "0.9")
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EmbedDim != 768 {
		t.Fatalf("expected embed dim 768, got %d", cfg.EmbedDim)
	}
	if cfg.RetrievalTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RetrievalTopK)
	}
	if cfg.MaxSubTasks != 4 {
		t.Fatalf("expected max sub tasks 4, got %d", cfg.MaxSubTasks)
	}
	if cfg.RevisePenalty != 0.9 {
		t.Fatalf("expected revise penalty 0.9, got %f", cfg.RevisePenalty)
	}
}

func TestLoadYAMLOverlayWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scimuse.yaml")
	if err := os.WriteFile(path, []byte("retrieval_top_k: 11\nqdrant_collection: papers\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("SCIMUSE_CONFIG", path)
	t.Setenv("SCIMUSE_RETRIEVAL_TOP_K", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RetrievalTopK != 11 {
		t.Fatalf("expected yaml top k 11, got %d", cfg.RetrievalTopK)
	}
	if cfg.QdrantCollection != "papers" {
		t.Fatalf("expected yaml collection, got %q", cfg.QdrantCollection)
	}
}

func TestNormalizeRejectsInvalidValues(t *testing.T) {
	cfg := Config{
		RetrievalTopK:     -1,
		ReviewMaxRetry:    -5,
		EmbedDim:          0,
		ChunkTargetTokens: 100,
		ChunkMaxTokens:    50,
		CoveragePenalty:   1.5,
		RevisePenalty:     -0.2,
	}.normalize()

	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected top k normalized to 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.ReviewMaxRetry != 0 {
		t.Fatalf("expected review max retry normalized to 0, got %d", cfg.ReviewMaxRetry)
	}
	if cfg.EmbedDim != 1536 {
		t.Fatalf("expected embed dim normalized to 1536, got %d", cfg.EmbedDim)
	}
	if cfg.ChunkMaxTokens != 150 {
		t.Fatalf("expected max tokens raised to 150, got %d", cfg.ChunkMaxTokens)
	}
	if cfg.CoveragePenalty != 0.5 {
		t.Fatalf("expected coverage penalty reset to 0.5, got %f", cfg.CoveragePenalty)
	}
	if cfg.RevisePenalty != 0.85 {
		t.Fatalf("expected revise penalty reset to 0.85, got %f", cfg.RevisePenalty)
	}
}

// chdirTemp keeps a stray scimuse.yaml in the working tree from leaking
// into default-value tests.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}
