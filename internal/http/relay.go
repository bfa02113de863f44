package httpx

import (
	"html/template"
	"net/http"
)

// relayFormData feeds the self-submitting relay form. The browser posts it to
// the session endpoint immediately; users with scripting disabled get a
// visible continue button.
type relayFormData struct {
	Action      string
	CSRFToken   string
	SAMLBody    string
	RedirectURI string
}

var relayFormTmpl = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Signing in…</title>
</head>
<body onload="document.forms[0].submit()">
<noscript><p>Click continue to finish signing in.</p></noscript>
<form method="POST" action="{{.Action}}">
<input type="hidden" name="csrfToken" value="{{.CSRFToken}}">
<input type="hidden" name="samlBody" value="{{.SAMLBody}}">
<input type="hidden" name="redirectUri" value="{{.RedirectURI}}">
<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>
`))

var loginFailureTmpl = template.Must(template.New("failure").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sign-in failed</title>
</head>
<body>
<h1>Sign-in failed</h1>
<p>We could not sign you in. <a href="/auth/login">Try again</a>.</p>
</body>
</html>
`))

func renderRelayForm(w http.ResponseWriter, data relayFormData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := relayFormTmpl.Execute(w, data); err != nil {
		// Headers are already out; nothing recoverable remains.
		return
	}
}

// renderLoginFailure writes the generic failure page. It carries no detail
// about which validation step failed.
func (h *AuthHandlers) renderLoginFailure(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = loginFailureTmpl.Execute(w, nil)
}
