package middleware

import (
	"bytes"
	"io"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/service"
	"github.com/GoPolymarket/arena/internal/signer"
	"github.com/gin-gonic/gin"
)

const ContextIdentityKey = "identity"

// AuthMiddleware resolves the caller identity from the signed request headers.
func AuthMiddleware(auth *service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		identity, err := auth.Authenticate(service.SignedRequest{
			Method:    c.Request.Method,
			Path:      c.Request.URL.RequestURI(),
			Body:      body,
			Identity:  c.GetHeader(signer.HeaderIdentity),
			Timestamp: c.GetHeader(signer.HeaderTimestamp),
			Signature: c.GetHeader(signer.HeaderSignature),
		})
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		// 将调用者身份存入上下文
		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

// Identity returns the authenticated caller, if any.
func Identity(c *gin.Context) (address.Address, bool) {
	val, exists := c.Get(ContextIdentityKey)
	if !exists {
		return address.Zero, false
	}
	id, ok := val.(address.Address)
	return id, ok
}
