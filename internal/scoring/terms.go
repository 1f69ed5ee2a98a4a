package scoring

// Term priority tiers for the keyword scorer, highest to lowest. A token is
// classified into the first tier that contains it or any of its split parts;
// unclassified tokens form the residual tier.

// Tier match weights for exact token matches. Partial (substring) matches
// earn half the exact weight.
const (
	weightConcept   = 6.0
	weightImportant = 5.0
	weightProduct   = 4.0
	weightTechnical = 3.0
	weightResidual  = 2.0
)

// conceptTerms are domain-concept (security/auth) vocabulary.
var conceptTerms = map[string]bool{
	"auth": true, "authentication": true, "authorization": true,
	"csrf": true, "cors": true, "xss": true, "sso": true, "oauth": true,
	"oidc": true, "saml": true, "jwt": true, "token": true, "tokens": true,
	"credential": true, "credentials": true, "password": true,
	"passwords": true, "secret": true, "secrets": true, "session": true,
	"sessions": true, "cookie": true, "cookies": true, "origin": true,
	"origins": true, "trusted": true, "permission": true,
	"permissions": true, "role": true, "roles": true, "scope": true,
	"scopes": true, "encryption": true, "encrypted": true, "tls": true,
	"ssl": true, "certificate": true, "certificates": true,
	"vulnerability": true, "vulnerabilities": true, "exploit": true,
	"injection": true, "sanitize": true, "sanitization": true,
	"escaping": true, "mfa": true, "2fa": true, "login": true,
	"logout": true, "signin": true, "signup": true, "identity": true,
	"privacy": true, "audit": true, "compliance": true,
}

// importantTerms are general high-signal terms that usually indicate a
// problem report.
var importantTerms = map[string]bool{
	"error": true, "errors": true, "bug": true, "bugs": true,
	"broken": true, "breaks": true, "breaking": true, "crash": true,
	"crashes": true, "crashed": true, "fail": true, "fails": true,
	"failed": true, "failure": true, "failures": true, "failing": true,
	"regression": true, "timeout": true, "timeouts": true, "hang": true,
	"hangs": true, "leak": true, "leaks": true, "deadlock": true,
	"panic": true, "exception": true, "exceptions": true, "corrupt": true,
	"corrupted": true, "corruption": true, "invalid": true,
	"incorrect": true, "wrong": true, "missing": true, "unexpected": true,
	"flaky": true, "blocked": true, "blocker": true, "critical": true,
	"urgent": true, "outage": true, "degraded": true, "slow": true,
	"misconfigured": true, "misconfiguration": true,
}

// productTerms are product and technology names.
var productTerms = map[string]bool{
	"postgres": true, "postgresql": true, "sqlite": true, "mysql": true,
	"redis": true, "kafka": true, "rabbitmq": true, "elasticsearch": true,
	"docker": true, "kubernetes": true, "k8s": true, "terraform": true,
	"aws": true, "gcp": true, "azure": true, "lambda": true,
	"cloudflare": true, "nginx": true, "envoy": true, "grafana": true,
	"prometheus": true, "slack": true, "discord": true, "github": true,
	"gitlab": true, "jira": true, "linear": true, "stripe": true,
	"chrome": true, "firefox": true, "safari": true, "android": true,
	"ios": true, "linux": true, "macos": true, "windows": true,
	"react": true, "vue": true, "django": true, "rails": true,
	"graphql": true, "grpc": true, "openai": true, "anthropic": true,
}

// technicalTerms are generic technical vocabulary.
var technicalTerms = map[string]bool{
	"api": true, "apis": true, "endpoint": true, "endpoints": true,
	"server": true, "servers": true, "client": true, "clients": true,
	"request": true, "requests": true, "response": true, "responses": true,
	"header": true, "headers": true, "config": true, "configs": true,
	"configuration": true, "configurations": true, "setting": true,
	"settings": true, "database": true, "databases": true, "cache": true,
	"caching": true, "queue": true, "queues": true, "webhook": true,
	"webhooks": true, "deploy": true, "deployment": true, "deploys": true,
	"build": true, "builds": true, "pipeline": true, "pipelines": true,
	"migration": true, "migrations": true, "schema": true, "index": true,
	"indexes": true, "query": true, "queries": true, "logging": true,
	"logs": true, "metrics": true, "monitoring": true, "upgrade": true,
	"version": true, "versions": true, "release": true, "releases": true,
	"branch": true, "merge": true, "rollback": true, "retry": true,
	"retries": true, "backoff": true, "ratelimit": true, "throttling": true,
	"pagination": true, "serialization": true, "encoding": true,
	"parsing": true, "validation": true, "sync": true, "async": true,
}

// stopWords are dropped during tokenization, alongside tokens of two
// characters or fewer.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "this": true, "that": true,
	"these": true, "those": true, "and": true, "or": true, "but": true,
	"if": true, "then": true, "else": true, "for": true, "from": true,
	"with": true, "about": true, "into": true, "over": true,
	"under": true, "after": true, "before": true, "between": true,
	"to": true, "of": true, "in": true, "on": true, "at": true,
	"by": true, "as": true, "it": true, "its": true, "we": true,
	"our": true, "you": true, "your": true, "they": true, "their": true,
	"them": true, "he": true, "she": true, "his": true, "her": true,
	"which": true, "who": true, "whom": true, "what": true, "when": true,
	"where": true, "how": true, "why": true, "there": true, "here": true,
	"all": true, "any": true, "both": true, "each": true, "some": true,
	"such": true, "only": true, "also": true, "very": true, "just": true,
	"not": true, "no": true, "nor": true, "so": true, "too": true,
	"than": true, "more": true, "most": true, "other": true,
	"same": true, "own": true, "out": true, "off": true, "again": true,
	"once": true, "because": true, "while": true, "during": true,
	"please": true, "thanks": true, "hello": true, "anyone": true,
	"someone": true, "getting": true, "seems": true, "like": true,
	"still": true, "now": true, "new": true, "one": true, "two": true,
	"via": true, "per": true, "etc": true,
}

// tierWeight classifies a token into its priority tier and returns the
// exact-match weight. Compound tokens are classified by their split parts
// as well, highest tier wins.
func tierWeight(token string) float64 {
	parts := splitCompound(token)
	candidates := make([]string, 0, len(parts)+1)
	candidates = append(candidates, token)
	candidates = append(candidates, parts...)

	weight := weightResidual
	for _, c := range candidates {
		switch {
		case conceptTerms[c]:
			return weightConcept
		case importantTerms[c] && weight < weightImportant:
			weight = weightImportant
		case productTerms[c] && weight < weightProduct:
			weight = weightProduct
		case technicalTerms[c] && weight < weightTechnical:
			weight = weightTechnical
		}
	}
	return weight
}
