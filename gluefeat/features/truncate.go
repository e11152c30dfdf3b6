package features

import "slices"

// truncatePair shortens a token pair until it fits maxLen, removing one token
// at a time from the end of the longer span. On equal lengths span B loses
// the token. The inputs are left untouched.
func truncatePair(a, b []string, maxLen int) ([]string, []string) {
	maxLen = max(maxLen, 0)
	la, lb := len(a), len(b)
	for la+lb > maxLen {
		if la > lb {
			la--
		} else {
			lb--
		}
	}
	return slices.Clone(a[:la]), slices.Clone(b[:lb])
}

// truncateSingle cuts a span and its weights to maxLen from the end.
func truncateSingle(tokens []string, weights []float32, maxLen int) ([]string, []float32) {
	maxLen = max(maxLen, 0)
	if len(tokens) <= maxLen {
		return tokens, weights
	}
	return tokens[:maxLen], weights[:maxLen]
}
