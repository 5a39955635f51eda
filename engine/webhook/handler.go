package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

// GinHandler returns a gin.HandlerFunc serving POST /webhooks/:slug,
// reading the raw body, pulling the signature header named by the slug's
// VerifySpec (defaulting to "X-Webhook-Signature" when unverified slugs
// are looked up before a body read is even needed), and delegating to
// Process.
func (o *Orchestrator) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		entry, ok := o.lookup(slug)
		if !ok {
			writeProblem(c, http.StatusNotFound, "unknown webhook slug", "")
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeProblem(c, http.StatusBadRequest, "failed to read request body", "")
			return
		}
		signature := ""
		if entry.Config.Verify != nil {
			signature = c.GetHeader(entry.Config.Verify.Header)
		}
		forwarded, err := o.Process(c.Request.Context(), slug, signature, body)
		if err != nil {
			log := logger.FromContext(c.Request.Context())
			switch {
			case errors.Is(err, ErrSignatureInvalid):
				writeProblem(c, http.StatusUnauthorized, "signature verification failed", "signature_invalid")
			case errors.Is(err, ErrUnknownSlug):
				writeProblem(c, http.StatusNotFound, "unknown webhook slug", "unknown_slug")
			default:
				log.Error("webhook: processing failed", "slug", slug, "error", core.RedactError(err))
				detail, code := problemFields(err)
				writeProblem(c, http.StatusBadRequest, detail, code)
			}
			return
		}
		if !forwarded {
			c.JSON(http.StatusOK, gin.H{"status": "dropped"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "forwarded"})
	}
}

// writeProblem renders an RFC 7807 problem document for the request's
// current path, redacting detail before it ever reaches the wire.
func writeProblem(c *gin.Context, status int, detail, code string) {
	problem := &core.Problem{
		Status:   status,
		Detail:   core.RedactString(detail),
		Instance: c.Request.URL.Path,
	}
	if code != "" {
		problem.Extras = map[string]any{"code": code}
	}
	c.JSON(status, core.BuildProblemBody(core.NormalizeProblem(problem)))
}

// problemFields extracts the detail/code pair a *core.Error in err's chain
// carries, via its AsMap representation, falling back to the bare error
// text for errors that never went through core.NewError.
func problemFields(err error) (detail, code string) {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		return err.Error(), ""
	}
	m := coreErr.AsMap()
	detail, _ = m["message"].(string)
	code, _ = m["code"].(string)
	return detail, code
}

// RegisterRoutes mounts the webhook surface under router at the given
// path prefix (e.g. "/webhooks").
func (o *Orchestrator) RegisterRoutes(router gin.IRouter, prefix string) {
	router.POST(prefix+"/:slug", o.GinHandler())
}
