package logger

import (
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Mask replaces every sensitive value in log output
const Mask = "****"

// SensitiveParams are query parameter names whose values never reach a log
var SensitiveParams = []string{
	"password", "pass", "passwd", "pwd",
	"username", "user", "login",
	"key", "apikey", "api_key",
	"token", "access_token", "auth",
	"secret", "client_secret",
	"signature", "sig",
}

var sensitiveSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SensitiveParams))
	for _, p := range SensitiveParams {
		m[p] = struct{}{}
	}
	return m
}()

var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>]+`)

// IsSensitiveParam reports whether a query parameter name carries a secret
func IsSensitiveParam(name string) bool {
	_, ok := sensitiveSet[strings.ToLower(name)]
	return ok
}

// MaskURL masks credential-bearing query values and user-info passwords.
// Parameter order and all other text are preserved. A fragment is masked
// whole when the query carried a secret, since an unescaped '#' inside a
// value moves the rest of it there.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		query, fragment, hasFragment := strings.Cut(raw, "#")
		masked := MaskQuery(query)
		if hasFragment {
			masked += "#" + maskFragment(fragment, masked != query)
		}
		return masked
	}

	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), Mask)
		}
	}
	query := u.RawQuery
	u.RawQuery = MaskQuery(query)
	if u.Fragment != "" {
		u.Fragment = maskFragment(u.Fragment, u.RawQuery != query)
		u.RawFragment = ""
	}

	out := u.String()
	// url.String escapes the mask inside user-info
	return strings.Replace(out, url.QueryEscape(Mask), Mask, 1)
}

func maskFragment(fragment string, afterSecret bool) string {
	if afterSecret {
		return Mask
	}
	return MaskQuery(fragment)
}

// MaskQuery masks sensitive values in a raw query string. A leading
// "...?" prefix is kept untouched.
func MaskQuery(raw string) string {
	prefix := ""
	query := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		prefix, query = raw[:i+1], raw[i+1:]
	}
	if query == "" {
		return raw
	}

	parts := strings.Split(query, "&")
	for i, part := range parts {
		name, _, hasValue := strings.Cut(part, "=")
		if !hasValue {
			continue
		}
		decoded, err := url.QueryUnescape(name)
		if err != nil {
			decoded = name
		}
		if IsSensitiveParam(decoded) {
			parts[i] = name + "=" + Mask
		}
	}
	return prefix + strings.Join(parts, "&")
}

// MaskString masks every URL embedded in free text, e.g. error messages
// produced by net/http that quote the request URL.
func MaskString(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, MaskURL)
}

// MaskedURL is a zap field carrying a masked URL
func MaskedURL(key, raw string) zap.Field {
	return zap.String(key, MaskURL(raw))
}

// MaskedError is a zap field carrying an error message with URLs masked
func MaskedError(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", MaskString(err.Error()))
}
