package portfolio

// Blend combines two allocation maps into one by per-ticker weighted sum
// over the union of tickers. A ticker missing from either map contributes
// zero from that method. kellyWeight and frontierWeight are expected to sum
// to one; the caller owns that invariant.
func Blend(kellyAlloc, frontierAlloc map[string]float64, kellyWeight, frontierWeight float64) map[string]float64 {
	blended := make(map[string]float64, len(kellyAlloc))

	for ticker, k := range kellyAlloc {
		blended[ticker] = k * kellyWeight
	}
	for ticker, f := range frontierAlloc {
		blended[ticker] += f * frontierWeight
	}
	return blended
}
