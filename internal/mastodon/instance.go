package mastodon

import "strings"

// Instance derives the instance domain and base URL from an account
// credential of the form local@domain. A credential without an @ is
// treated as a bare domain. The base URL gains an https:// prefix unless
// one is already present.
func Instance(cred string) (domain, baseURL string) {
	domain = cred
	if i := strings.LastIndex(cred, "@"); i >= 0 {
		domain = cred[i+1:]
	}

	baseURL = domain
	if !strings.Contains(baseURL, "https://") {
		baseURL = "https://" + domain
	}

	return domain, baseURL
}
