package security

import (
	"net/http"

	"github.com/noah-isme/backend-resto/internal/common"
)

// BodyLimit caps request bodies at Max bytes. A declared Content-Length over
// the cap is refused before the handler runs. Chunked bodies are wrapped in
// http.MaxBytesReader, and common.DecodeJSON turns the overflow into the same
// 413 response.
type BodyLimit struct {
	Max int64
}

func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.WriteError(w, r, common.PayloadTooLarge(b.Max))
			return
		}
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}
