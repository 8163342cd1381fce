package backend

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac>" on cart-sync posts.
const SignatureHeader = "X-Signature"

// SignSync signs a cart-sync body. The MAC covers "<unix ts>.<body>" so a
// captured body cannot be replayed under a fresh timestamp.
func SignSync(secret string, ts time.Time, body []byte) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + ",v1=" + syncMAC(secret, unix, body)
}

func syncMAC(secret, unix string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
