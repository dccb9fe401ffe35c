package secrets

// Rule detects one kind of secret.
type Rule struct {
	ID       string   `koanf:"id"`
	Pattern  string   `koanf:"pattern"`
	Keywords []string `koanf:"keywords"`
}

// DefaultRules covers the credentials people tend to paste into a topic by
// accident: cloud and forge tokens, model provider keys, connection strings.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "aws-access-key-id", Pattern: `\b(?:A3T[A-Z0-9]|AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`},
		{ID: "aws-secret-access-key", Pattern: `(?i)aws_?secret_?(?:access_?)?key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}`, Keywords: []string{"aws"}},
		{ID: "github-token", Pattern: `\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}\b`},
		{ID: "github-fine-grained", Pattern: `\bgithub_pat_[A-Za-z0-9_]{22,}`},
		{ID: "gitlab-token", Pattern: `\bglpat-[A-Za-z0-9_-]{20,}`},
		{ID: "slack-token", Pattern: `\bxox[abprs]-[A-Za-z0-9-]{10,}`},
		{ID: "stripe-key", Pattern: `\b[sr]k_(?:live|test)_[A-Za-z0-9]{24,}`},
		{ID: "anthropic-api-key", Pattern: `\bsk-ant-[A-Za-z0-9_-]{32,}`},
		{ID: "openai-api-key", Pattern: `\bsk-(?:proj-)?[A-Za-z0-9_-]{32,}`},
		{ID: "google-api-key", Pattern: `\bAIza[A-Za-z0-9_-]{35}`},
		{ID: "jwt", Pattern: `\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`},
		{ID: "private-key", Pattern: `-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----[\s\S]*?(?:-----END (?:[A-Z]+ )?PRIVATE KEY-----|$)`},
		{ID: "database-url", Pattern: `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp|nats)://[^\s:/@]+:[^\s@]+@\S+`},
		{ID: "bearer-token", Pattern: `(?i)\bbearer\s+[A-Za-z0-9_.~+/-]{20,}=*`},
		{
			ID:       "password-assignment",
			Pattern:  `(?i)\b(?:password|passwd|mot_de_passe|secret|api_?key|token)\s*[:=]\s*['"]?[^\s'"]{8,}`,
			Keywords: []string{"pass", "secret", "key", "token"},
		},
	}
}
