// Webhook and liveness handlers.
//
// The webhook endpoint acknowledges every delivery with 200 once the batch
// settled. The platform redelivers on any other status, which would answer
// the same events twice, so malformed bodies and pipeline panics are logged
// and masked.
package handlers

import (
	"context"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-bot/internal/clients/line"
	"github.com/tbourn/go-coach-bot/internal/http/middleware"
)

// Ack is the webhook acknowledgement body.
type Ack struct {
	Status string `json:"status"`
}

// Webhook godoc
// @ID          webhook
// @Summary     Receive a LINE webhook delivery
// @Description Verifies X-Line-Signature, answers every message event and always acknowledges with 200 once the batch settled.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       X-Line-Signature  header  string  false "Base64 HMAC-SHA256 of the body (required when LINE_CHANNEL_SECRET is set)"
//
// @Success     200  {object}  handlers.Ack
// @Failure     401  {object}  handlers.ErrorResponse  "Signature mismatch"
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	defer ok(c, http.StatusOK, Ack{Status: "ok"})

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		lg.Warn().Err(err).Msg("webhook body unreadable")
		return
	}
	payload, err := line.ParsePayload(body)
	if err != nil {
		lg.Warn().Err(err).Int("bytes", len(body)).Msg("webhook body malformed")
		return
	}
	events := payload.MessageEvents()
	lg.Debug().Int("events", len(payload.Events)).Int("messages", len(events)).Msg("webhook received")
	if len(events) == 0 {
		return
	}

	// The batch must finish even if the platform hangs up first.
	ctx := context.WithoutCancel(c.Request.Context())
	if h.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.dispatchTimeout)
		defer cancel()
	}
	ctx = lg.WithContext(ctx)

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				lg.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("dispatch panicked")
			}
		}()
		outcomes := h.dispatcher.Dispatch(ctx, events)
		delivered := 0
		for _, o := range outcomes {
			if o.Delivered {
				delivered++
			}
		}
		lg.Info().Int("events", len(events)).Int("delivered", delivered).Msg("webhook batch settled")
	}()
}

// WebhookVerify answers GET /webhook, used by the console's verify button.
func (h *Handlers) WebhookVerify(c *gin.Context) { plain(c, "ok") }

// Root answers GET / with "alive".
func (h *Handlers) Root(c *gin.Context) { plain(c, "alive") }

// Health answers GET /health with "ok".
func (h *Handlers) Health(c *gin.Context) { plain(c, "ok") }
