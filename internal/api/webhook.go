// webhook.go - Twilio WhatsApp webhook answering with TwiML

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bosocmputer/voicebill/internal/conversation"
	"github.com/bosocmputer/voicebill/internal/messaging"
	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

// maxInboundMedia is the attachment count Twilio documents for one message
const maxInboundMedia = 10

// TwiML renders the reply messages as a Twilio messaging response
func TwiML(reply conversation.Reply) ([]byte, error) {
	verbs := make([]twiml.Element, 0, len(reply.Messages))
	for _, m := range reply.Messages {
		verbs = append(verbs, &twiml.MessagingMessage{Body: m})
	}
	doc, err := twiml.Messages(verbs)
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

// ParseInbound reads the Twilio form fields into a transport-neutral message
func ParseInbound(c *gin.Context) (conversation.Inbound, error) {
	in := conversation.Inbound{
		From: strings.TrimSpace(c.PostForm("From")),
		Body: c.PostForm("Body"),
	}
	if in.From == "" {
		return in, fmt.Errorf("missing From")
	}

	numMedia, err := strconv.Atoi(c.DefaultPostForm("NumMedia", "0"))
	if err != nil || numMedia < 0 {
		return in, fmt.Errorf("invalid NumMedia %q", c.PostForm("NumMedia"))
	}
	if numMedia > maxInboundMedia {
		numMedia = maxInboundMedia
	}
	for i := 0; i < numMedia; i++ {
		u := c.PostForm(fmt.Sprintf("MediaUrl%d", i))
		if u == "" {
			continue
		}
		in.Media = append(in.Media, conversation.Media{
			URL:         u,
			ContentType: c.PostForm(fmt.Sprintf("MediaContentType%d", i)),
		})
	}
	return in, nil
}

func (h *Handler) WhatsAppWebhook(c *gin.Context) {
	// Step 1: Authenticate the request when a token is configured
	if h.cfg.WebhookToken != "" {
		if err := c.Request.ParseForm(); err != nil {
			badRequest(c, err)
			return
		}
		target := strings.TrimRight(h.cfg.PublicURL, "/") + c.Request.URL.RequestURI()
		if !messaging.ValidSignature(h.cfg.WebhookToken, target, c.Request.PostForm, c.GetHeader(messaging.SignatureHeader)) {
			h.log.Warn("rejected webhook with bad signature", "remote", c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	}

	// Step 2: Parse the message
	in, err := ParseInbound(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.log.Info("Received message", "from", in.From, "media", len(in.Media))

	// Step 3: Run the conversation
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.WebhookTimeout)
	defer cancel()
	reply := h.deps.Dispatcher.Handle(ctx, in)

	// Step 4: Answer inline
	body, err := TwiML(reply)
	if err != nil {
		h.log.Error("twiml encode failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml", body)
}
