// internal/app/system/normalize/normalize.go
package normalize

import "strings"

// Email trims and lowercases an address. The result is the uniqueness key
// for users (email_ci).
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Domain returns the lowercase domain part of an email address, or "" when
// the address has no usable domain.
func Domain(email string) string {
	e := Email(email)
	at := strings.LastIndexByte(e, '@')
	if at < 1 || at == len(e)-1 {
		return ""
	}
	return strings.TrimSuffix(e[at+1:], ".")
}
