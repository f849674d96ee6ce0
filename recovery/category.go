package recovery

import "github.com/jonwraymond/sparqlops/sparql"

// Category is a failure class.
type Category string

const (
	CategorySyntax              Category = "syntax"
	CategoryTimeout             Category = "timeout"
	CategoryMemory              Category = "memory"
	CategoryNetwork             Category = "network"
	CategoryAuthentication      Category = "authentication"
	CategoryRateLimit           Category = "rate_limit"
	CategoryEndpointUnavailable Category = "endpoint_unavailable"
	CategoryQueryTooComplex     Category = "query_too_complex"
	CategoryResourceNotFound    Category = "resource_not_found"
	CategoryPermissionDenied    Category = "permission_denied"
	CategoryMalformedResponse   Category = "malformed_response"
	CategoryUnknown             Category = "unknown"
)

// Strategy is how a failed query is retried.
type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategyImmediate   Strategy = "immediate"
	StrategyExponential Strategy = "exponential_backoff"
	StrategyLinear      Strategy = "linear_backoff"
)

// Policy is the handling attached to a category.
type Policy struct {
	// Severity ranges from 1 (cosmetic) to 10 (fatal).
	Severity    int
	Recoverable bool
	Strategy    Strategy

	// NeedsRewrite marks categories that resending the same query cannot
	// fix.
	NeedsRewrite bool
}

var policies = map[Category]Policy{
	CategorySyntax:              {Severity: 3, Recoverable: true, Strategy: StrategyNone, NeedsRewrite: true},
	CategoryTimeout:             {Severity: 6, Recoverable: true, Strategy: StrategyExponential},
	CategoryMemory:              {Severity: 7, Recoverable: true, Strategy: StrategyNone, NeedsRewrite: true},
	CategoryNetwork:             {Severity: 7, Recoverable: true, Strategy: StrategyExponential},
	CategoryAuthentication:      {Severity: 8, Recoverable: false, Strategy: StrategyNone},
	CategoryRateLimit:           {Severity: 6, Recoverable: true, Strategy: StrategyLinear},
	CategoryEndpointUnavailable: {Severity: 7, Recoverable: true, Strategy: StrategyExponential},
	CategoryQueryTooComplex:     {Severity: 6, Recoverable: true, Strategy: StrategyNone, NeedsRewrite: true},
	CategoryResourceNotFound:    {Severity: 5, Recoverable: false, Strategy: StrategyNone},
	CategoryPermissionDenied:    {Severity: 7, Recoverable: false, Strategy: StrategyNone},
	CategoryMalformedResponse:   {Severity: 6, Recoverable: true, Strategy: StrategyImmediate},
	CategoryUnknown:             {Severity: 5, Recoverable: true, Strategy: StrategyImmediate},
}

// PolicyFor returns the policy of c. Unknown categories get the
// CategoryUnknown policy.
func PolicyFor(c Category) Policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[CategoryUnknown]
}

// Categories lists every category in rule-table order, Unknown last.
func Categories() []Category {
	return []Category{
		CategorySyntax,
		CategoryTimeout,
		CategoryMemory,
		CategoryNetwork,
		CategoryAuthentication,
		CategoryRateLimit,
		CategoryEndpointUnavailable,
		CategoryQueryTooComplex,
		CategoryResourceNotFound,
		CategoryPermissionDenied,
		CategoryMalformedResponse,
		CategoryUnknown,
	}
}

// kindCategories maps typed fault kinds directly.
var kindCategories = map[sparql.ErrorKind]Category{
	sparql.KindSyntax:         CategorySyntax,
	sparql.KindTimeout:        CategoryTimeout,
	sparql.KindAuthentication: CategoryAuthentication,
	sparql.KindPermission:     CategoryPermissionDenied,
	sparql.KindRateLimit:      CategoryRateLimit,
	sparql.KindUnavailable:    CategoryEndpointUnavailable,
	sparql.KindNotFound:       CategoryResourceNotFound,
	sparql.KindConnection:     CategoryNetwork,
	sparql.KindTLS:            CategoryNetwork,
	sparql.KindTooComplex:     CategoryQueryTooComplex,
	sparql.KindTooLarge:       CategoryMemory,
	sparql.KindMalformed:      CategoryMalformedResponse,
}
