package toolregistry

import (
	"fmt"

	"github.com/keyveloper/coin-news-go/runtime/query"
)

// NewGetCoinPriceCall builds the ToolCall.Arguments map for get_coin_price.
func NewGetCoinPriceCall(coin string, pivotEpoch int64, rangeType query.RangeType, direction query.Direction) query.ToolCall {
	return query.ToolCall{
		ToolName: ToolGetCoinPrice,
		Arguments: map[string]any{
			"coin_name":        coin,
			"pivot_date_epoch": pivotEpoch,
			"range_type":       string(rangeType),
			"direction":        string(direction),
		},
	}
}

// SearchParams is the Planner-attached meta describing how the Executor
// should auto-chain a semantic_search call from a make_semantic_query
// result, per §4.3.
type SearchParams struct {
	TopK                int
	SimilarityThreshold float64
	PivotDateEpoch      int64
	HasPivotDate        bool
	DateRange           string
}

// MetaSearchParams is the meta argument key carrying SearchParams.
const MetaSearchParams = "_search_params"

// NewMakeSemanticQueryCall builds the ToolCall.Arguments map for
// make_semantic_query, attaching _search_params as meta for auto-chaining.
func NewMakeSemanticQueryCall(coins []string, intent query.IntentType, keywords []string, magnitude query.Magnitude, customContext string, params SearchParams) query.ToolCall {
	return query.ToolCall{
		ToolName: ToolMakeSemanticQuery,
		Arguments: map[string]any{
			"coin_names":      coins,
			"intent_type":     string(intent),
			"event_keywords":  keywords,
			"event_magnitude": string(magnitude),
			"custom_context":  customContext,
			MetaSearchParams:  params,
		},
	}
}

// DecodeGetCoinPriceArgs recovers a typed GetCoinPriceArgs from a stripped
// argument map.
func DecodeGetCoinPriceArgs(args map[string]any) (GetCoinPriceArgs, error) {
	coin, _ := args["coin_name"].(string)
	if coin == "" {
		return GetCoinPriceArgs{}, fmt.Errorf("coin_name is required")
	}
	pivot, err := intArg(args, "pivot_date_epoch")
	if err != nil {
		return GetCoinPriceArgs{}, err
	}
	rt, _ := args["range_type"].(string)
	dir, _ := args["direction"].(string)
	return GetCoinPriceArgs{
		CoinName:       coin,
		PivotDateEpoch: pivot,
		RangeType:      query.RangeType(rt),
		Direction:      query.Direction(dir),
	}, nil
}

// DecodeMakeSemanticQueryArgs recovers a typed MakeSemanticQueryArgs from a
// stripped argument map (meta keys already removed by the Executor).
func DecodeMakeSemanticQueryArgs(args map[string]any) (MakeSemanticQueryArgs, error) {
	return MakeSemanticQueryArgs{
		CoinNames:      stringsArg(args, "coin_names"),
		IntentType:     query.IntentType(stringArg(args, "intent_type")),
		EventKeywords:  stringsArg(args, "event_keywords"),
		EventMagnitude: query.Magnitude(stringArg(args, "event_magnitude")),
		CustomContext:  stringArg(args, "custom_context"),
	}, nil
}

// DecodeSearchParams recovers SearchParams from the raw meta value stored
// under MetaSearchParams.
func DecodeSearchParams(v any) (SearchParams, bool) {
	sp, ok := v.(SearchParams)
	return sp, ok
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intArg(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%s is required", key)
	}
}
