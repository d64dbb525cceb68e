package toolregistry

import "github.com/keyveloper/coin-news-go/runtime/query"

type (
	// PricePoint is one OHLC or daily-close sample returned by get_coin_price.
	PricePoint struct {
		Epoch int64
		Open  float64
		High  float64
		Low   float64
		Close float64
	}

	// NewsPassage is one retrieved unit from the vector store: text plus
	// metadata and a similarity score, returned by semantic_search.
	NewsPassage struct {
		Title      string
		Source     string
		DateEpoch  int64
		Text       string
		Similarity float64
	}
)

// GetCoinPriceArgs is the typed argument shape for the get_coin_price tool.
// Handlers receive these as a map[string]any (per the Handler contract) and
// should use DecodeGetCoinPriceArgs to recover this shape.
type GetCoinPriceArgs struct {
	CoinName       string
	PivotDateEpoch int64
	RangeType      query.RangeType
	Direction      query.Direction
}

// MakeSemanticQueryArgs is the typed argument shape for make_semantic_query.
type MakeSemanticQueryArgs struct {
	CoinNames       []string
	IntentType      query.IntentType
	EventKeywords   []string
	EventMagnitude  query.Magnitude
	CustomContext   string
}

// SemanticSearchArgs is the typed argument shape for semantic_search.
type SemanticSearchArgs struct {
	Query                string
	TopK                 int
	SimilarityThreshold  float64
	PivotDateEpoch       int64
	HasPivotDate         bool
	DateRange            string // "day" | "week" | "month" | ""
	Source               string
}

// SummarizePriceDataArgs is the typed argument shape for summarize_price_data.
type SummarizePriceDataArgs struct {
	CoinName  string
	Prices    []PricePoint
	Focus     string
}

// SummarizeNewsChunksArgs is the typed argument shape for summarize_news_chunks.
type SummarizeNewsChunksArgs struct {
	Chunks []NewsPassage
	Focus  string
}
