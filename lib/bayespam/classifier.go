// Package bayespam implements a binary spam/ham naive Bayes classifier with
// the vocabulary stored in a finite-state transducer. The model is immutable
// once built and safe for concurrent readers; training builds a brand-new
// model and never mutates one in place.
package bayespam

import "math"

// default tunables, callers are expected to validate overrides before passing them in.
const (
	DefaultThreshold = 0.80 // spam probability to classify as spam
	DefaultSmoothing = 1.0  // laplace smoothing factor (alpha)
)

// Result is a single classification outcome.
type Result struct {
	Text            string  `json:"text"`
	SpamProbability float64 `json:"spam_probability"`
	HamProbability  float64 `json:"ham_probability"`
	IsSpam          bool    `json:"is_spam"`
	Confidence      float64 `json:"confidence"`
}

// Classifier scores texts against a model. Threshold and Smoothing are the
// only tunables; the zero-cost way to share one across goroutines is to keep
// it read-only after construction, same as the model it holds.
type Classifier struct {
	Threshold float64
	Smoothing float64
	model     *Model
}

// NewClassifier makes a classifier with default threshold and smoothing.
func NewClassifier(m *Model) *Classifier {
	return &Classifier{Threshold: DefaultThreshold, Smoothing: DefaultSmoothing, model: m}
}

// Classify tokenizes the text and returns calibrated probabilities for both
// classes. It is total: any input, including empty or symbol-only text,
// produces a valid result. Empty token sequences classify from priors alone.
func (c *Classifier) Classify(text string) Result {
	logSpam, logHam := c.model.Priors()
	vocabulary := float64(c.model.Len())
	agg := c.model.Aggregates()

	// one model lookup per token occurrence, in tokenizer order.
	// absent tokens contribute with zero counts, smoothing keeps them finite.
	for _, token := range Tokenize(text) {
		counts, _ := c.model.Lookup(token)
		logSpam += math.Log((float64(counts.Spam) + c.Smoothing) / (float64(agg.SpamTokens) + c.Smoothing*vocabulary))
		logHam += math.Log((float64(counts.Ham) + c.Smoothing) / (float64(agg.HamTokens) + c.Smoothing*vocabulary))
	}

	// log-sum-exp with max subtraction, stable against underflow from long inputs
	maxLog := math.Max(logSpam, logHam)
	denom := maxLog + math.Log(math.Exp(logSpam-maxLog)+math.Exp(logHam-maxLog))
	spamProb := clamp01(math.Exp(logSpam - denom))
	hamProb := clamp01(math.Exp(logHam - denom))

	// degenerate numerics (empty vocabulary, zero smoothing on unseen tokens)
	// fall back to the class priors instead of propagating NaN/Inf
	if !validProb(spamProb) || !validProb(hamProb) {
		priorSpam, priorHam := c.model.Priors()
		spamProb, hamProb = clamp01(math.Exp(priorSpam)), clamp01(math.Exp(priorHam))
	}

	isSpam := spamProb >= c.Threshold // equality counts as spam
	return Result{
		Text:            text,
		SpamProbability: spamProb,
		HamProbability:  hamProb,
		IsSpam:          isSpam,
		Confidence:      math.Max(spamProb, hamProb),
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func validProb(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
