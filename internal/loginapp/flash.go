package loginapp

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gin-gonic/gin"
)

const ctxFlashes = "loginapp.flashes"

// pendingFlashes returns the messages queued for display: those carried in
// from the flash cookie plus any added during this request.
func pendingFlashes(c *gin.Context) []string {
	if v, ok := c.Get(ctxFlashes); ok {
		return v.([]string)
	}

	var list []string
	if raw, err := c.Cookie(FlashCookie); err == nil && raw != "" {
		if b, err := base64.RawURLEncoding.DecodeString(raw); err == nil {
			_ = json.Unmarshal(b, &list)
		}
	}

	c.Set(ctxFlashes, list)

	return list
}

// addFlash queues msg and persists the queue for the next page render.
func addFlash(c *gin.Context, msg string) {
	list := append(pendingFlashes(c), msg)
	c.Set(ctxFlashes, list)

	b, _ := json.Marshal(list)
	setCookie(c, FlashCookie, base64.RawURLEncoding.EncodeToString(b), 0)
}

// takeFlashes drains the queue as JSON string literals, ready to be embedded
// into alert() calls.
func takeFlashes(c *gin.Context) []string {
	list := pendingFlashes(c)
	if len(list) == 0 {
		return nil
	}

	c.Set(ctxFlashes, []string(nil))
	setCookie(c, FlashCookie, "", -1)

	out := make([]string, 0, len(list))
	for _, msg := range list {
		b, _ := json.Marshal(msg)
		out = append(out, string(b))
	}

	return out
}
