package planner

import "github.com/keyveloper/coin-news-go/runtime/query"

// DepthParams is the (top_k, similarity_threshold) pair a search depth maps
// to, per §4.3. Threshold constants are a per-deployment tunable but must be
// monotonic in depth (deep is the most permissive).
type DepthParams struct {
	TopK                int
	SimilarityThreshold float64
}

var depthTable = map[query.Depth]DepthParams{
	query.DepthShort:  {TopK: 10, SimilarityThreshold: 0.75},
	query.DepthMedium: {TopK: 15, SimilarityThreshold: 0.65},
	query.DepthDeep:   {TopK: 25, SimilarityThreshold: 0.55},
}

// ParamsForDepth returns the (top_k, similarity_threshold) pair for depth,
// defaulting to DepthMedium's parameters for an unrecognized depth.
func ParamsForDepth(depth query.Depth) DepthParams {
	if p, ok := depthTable[depth]; ok {
		return p
	}
	return depthTable[query.DepthMedium]
}

// DateRangeFor maps a search depth to the semantic_search date_range token:
// short → "day", deep → "month", medium and any unrecognized depth → "week".
// The intent type does not affect the choice.
func DateRangeFor(depth query.Depth) string {
	switch depth {
	case query.DepthShort:
		return "day"
	case query.DepthDeep:
		return "month"
	default:
		return "week"
	}
}
