package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
)

// expectedSignature computes the X-Twilio-Signature value for a request:
// base64(HMAC-SHA1(url + sorted form key/value pairs, auth token)).
func expectedSignature(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := requestURL
	for _, k := range keys {
		for _, v := range form[k] {
			payload += k + v
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// validSignature checks a parsed request against the configured auth
// token. The form must already be parsed.
func (h *Handler) validSignature(r *http.Request) bool {
	if h.cfg.AuthToken == "" {
		return true
	}
	requestURL := h.cfg.PublicURL + r.URL.RequestURI()
	want := expectedSignature(h.cfg.AuthToken, requestURL, r.PostForm)
	got := r.Header.Get("X-Twilio-Signature")
	return hmac.Equal([]byte(want), []byte(got))
}
