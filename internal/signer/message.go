package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Request headers carried by every signed call.
const (
	HeaderIdentity  = "X-Arena-Identity"
	HeaderTimestamp = "X-Arena-Timestamp"
	HeaderSignature = "X-Arena-Signature"
)

// CanonicalMessage is the byte string a caller signs:
// METHOD\nPATH\nTIMESTAMP\nhex(sha256(body))
func CanonicalMessage(method, path, timestamp string, body []byte) []byte {
	digest := sha256.Sum256(body)
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(timestamp)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(digest[:]))
	return []byte(b.String())
}

func FormatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func ParseTimestamp(raw string) (time.Time, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
