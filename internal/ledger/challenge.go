package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// challengeWindow buckets challenges into 5 minute validity windows.
const challengeWindow = 300

// Challenger issues and verifies wallet-link challenges. A challenge binds a
// recipient to an address within the current time bucket.
type Challenger struct {
	secret []byte
	now    func() time.Time
}

func NewChallenger(secret string) *Challenger {
	return &Challenger{secret: []byte(secret), now: time.Now}
}

func (c *Challenger) Make(recipientID, address string) string {
	bucket := c.now().Unix() / challengeWindow
	message := fmt.Sprintf("link:%s:%s:%d", recipientID, address, bucket)
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(message))
	return message + ":" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Challenger) Verify(signature, recipientID, address string) bool {
	return hmac.Equal([]byte(signature), []byte(c.Make(recipientID, address)))
}
