package location

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// sigV4DateLayout is the timestamp format of X-Amz-Date and X-Goog-Date.
const sigV4DateLayout = "20060102T150405Z"

// ParseExpiry extracts the expiration instant encoded in a signed URL.
//
// Recognised schemes:
//   - AWS SigV4: X-Amz-Date + X-Amz-Expires (seconds)
//   - GCS V4: X-Goog-Date + X-Goog-Expires (seconds)
//   - AWS SigV2, GCS V2, CloudFront: Expires (unix seconds)
//   - gocloud fileblob HMAC signer: expiry (unix seconds)
//   - Azure SAS: se (RFC 3339)
//
// The boolean is false when rawURL carries no recognisable expiry.
func ParseExpiry(rawURL string) (time.Time, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}, false
	}
	q := u.Query()

	for _, prefix := range []string{"X-Amz-", "X-Goog-"} {
		if t, ok := parseSigV4(lookup(q, prefix+"Date"), lookup(q, prefix+"Expires")); ok {
			return t, true
		}
	}

	for _, key := range []string{"Expires", "expiry"} {
		if v := q.Get(key); v != "" {
			if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
				return time.Unix(secs, 0).UTC(), true
			}
		}
	}

	if v := q.Get("se"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

func parseSigV4(date, expires string) (time.Time, bool) {
	if date == "" || expires == "" {
		return time.Time{}, false
	}
	signed, err := time.Parse(sigV4DateLayout, date)
	if err != nil {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return signed.Add(time.Duration(secs) * time.Second), true
}

// lookup finds a query parameter case-insensitively; signers disagree on the
// capitalisation of the X-Amz-* family.
func lookup(q url.Values, key string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	for k, vs := range q {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

