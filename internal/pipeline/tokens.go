package pipeline

// TokenCounter estimates the model token count of a text.
type TokenCounter func(text string) int

// ApproxCounter returns a character-ratio token estimator. Model tokenizers
// average around four characters per token for western-language prose, so the
// estimate is deliberately coarse; the chunker applies a safety factor on top.
func ApproxCounter(charsPerToken int) TokenCounter {
	if charsPerToken < 1 {
		charsPerToken = 4
	}
	return func(text string) int {
		if text == "" {
			return 0
		}
		return (len(text) + charsPerToken - 1) / charsPerToken
	}
}
