package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyTable(t *testing.T) {
	tests := []struct {
		cat          Category
		severity     int
		recoverable  bool
		strategy     Strategy
		needsRewrite bool
	}{
		{CategorySyntax, 3, true, StrategyNone, true},
		{CategoryTimeout, 6, true, StrategyExponential, false},
		{CategoryMemory, 7, true, StrategyNone, true},
		{CategoryNetwork, 7, true, StrategyExponential, false},
		{CategoryAuthentication, 8, false, StrategyNone, false},
		{CategoryRateLimit, 6, true, StrategyLinear, false},
		{CategoryEndpointUnavailable, 7, true, StrategyExponential, false},
		{CategoryQueryTooComplex, 6, true, StrategyNone, true},
		{CategoryResourceNotFound, 5, false, StrategyNone, false},
		{CategoryPermissionDenied, 7, false, StrategyNone, false},
		{CategoryMalformedResponse, 6, true, StrategyImmediate, false},
		{CategoryUnknown, 5, true, StrategyImmediate, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			p := PolicyFor(tt.cat)
			assert.Equal(t, tt.severity, p.Severity)
			assert.Equal(t, tt.recoverable, p.Recoverable)
			assert.Equal(t, tt.strategy, p.Strategy)
			assert.Equal(t, tt.needsRewrite, p.NeedsRewrite)
		})
	}
}

func TestPolicyFor_UnknownCategory(t *testing.T) {
	assert.Equal(t, PolicyFor(CategoryUnknown), PolicyFor(Category("bogus")))
}

func TestCategories_Complete(t *testing.T) {
	cats := Categories()
	assert.Len(t, cats, len(policies))
	for _, c := range cats {
		_, ok := policies[c]
		assert.True(t, ok, "no policy for %s", c)
		assert.NotEmpty(t, baseSuggestions[c], "no suggestions for %s", c)
	}
	assert.Equal(t, CategoryUnknown, cats[len(cats)-1])
}
