// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder produces deterministic bag-of-words vectors: texts that share
// words are similar, so search and graph tests can assert on rankings
// without a running embedding server.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider()
//	vector, err := provider.Embedder().EmbedText(ctx, "quick brown fox")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Inspect what was embedded
//	count := embedder.CallCount()
//	texts := embedder.Texts()
package mock
