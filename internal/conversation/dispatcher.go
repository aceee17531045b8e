// dispatcher.go - Routes one inbound chat message to the invoice pipeline or a command
package conversation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bosocmputer/voicebill/internal/ai"
	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/bosocmputer/voicebill/internal/email"
	"github.com/bosocmputer/voicebill/internal/lock"
	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/bosocmputer/voicebill/internal/messaging"
	"github.com/bosocmputer/voicebill/internal/payment"
	"github.com/bosocmputer/voicebill/internal/pending"
	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/google/uuid"
)

const (
	recentInvoiceLimit = 5
	customerListLimit  = 10
)

// Media is one attachment of an inbound message
type Media struct {
	URL         string
	ContentType string
}

// Inbound is a transport-neutral chat message
type Inbound struct {
	From  string // sender address, e.g. whatsapp:+919876543210
	Body  string
	Media []Media
}

// Reply holds the messages to answer inline, in order
type Reply struct {
	Messages []string
}

func replyWith(msgs ...string) Reply {
	return Reply{Messages: msgs}
}

// InvoiceRenderer produces the PDF attached to invoice e-mails
type InvoiceRenderer interface {
	Bytes(inv *storage.Invoice) ([]byte, error)
}

// Deps are the collaborators of the dispatcher. Payments, Mailer, PDF and
// Messenger are optional; a nil value skips that step.
type Deps struct {
	Store       storage.Store
	Locker      lock.Locker
	Media       messaging.MediaFetcher
	Messenger   messaging.Messenger
	Transcriber ai.Transcriber
	Extractor   ai.Extractor
	Prices      ai.PriceParser
	Payments    payment.LinkCreator
	Mailer      email.Sender
	PDF         InvoiceRenderer
}

type Config struct {
	TaxRate          float64
	DefaultItemPrice float64
	BackendURL       string
	// LockTimeout bounds the wait for another message of the same user
	LockTimeout time.Duration
	Now         func() time.Time
}

type Dispatcher struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
}

func New(log *logger.Logger, deps Deps, cfg Config) (*Dispatcher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("store required")
	case deps.Media == nil:
		return nil, fmt.Errorf("media fetcher required")
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("transcriber required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor required")
	case deps.Prices == nil:
		return nil, fmt.Errorf("price parser required")
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{deps: deps, cfg: cfg, log: log.With("service", "Dispatcher")}, nil
}

// Handle processes one message and always returns something to say back.
// Errors and panics below this point become the localized error reply.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) (reply Reply) {
	reqCtx := common.NewRequestContext(d.log, in.From)
	lang := "en"

	defer func() {
		if r := recover(); r != nil {
			reqCtx.Logger().Error("panic while handling message", "panic", r, "stack", string(debug.Stack()))
			reply = replyWith(For(lang).Error)
		}
	}()

	// Step 1: Identify the shopkeeper
	reqCtx.StartStep("resolve_user")
	user, err := d.ensureUser(ctx, in.From)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return replyWith(For(lang).Error)
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.SetUser(user.ID)
	lang = user.Language

	// Step 2: Serialize with other messages from the same user
	release := d.acquire(ctx, reqCtx, user.ID)
	defer release()

	// Step 3: Route
	if len(in.Media) > 0 {
		reply = d.handleMedia(ctx, reqCtx, user, in)
	} else {
		reply = d.handleText(ctx, reqCtx, user, in)
	}

	reqCtx.Logger().Info("message handled", "summary", reqCtx.GetSummary())
	return reply
}

// acquire takes the per-user lock; on failure the message is processed unlocked
func (d *Dispatcher) acquire(ctx context.Context, reqCtx *common.RequestContext, userID string) func() {
	lockCtx, cancel := context.WithTimeout(ctx, d.cfg.LockTimeout)
	defer cancel()

	release, err := d.deps.Locker.Acquire(lockCtx, userID)
	if err != nil {
		reqCtx.Logger().Warn("per-user lock unavailable, continuing unlocked", "error", err)
		return func() {}
	}
	return release
}

// NormalizePhone removes the channel prefix Twilio puts on WhatsApp addresses
func NormalizePhone(from string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:"))
}

func lastDigits(phone string, n int) string {
	if len(phone) <= n {
		return phone
	}
	return phone[len(phone)-n:]
}

func (d *Dispatcher) ensureUser(ctx context.Context, from string) (*storage.User, error) {
	phone := NormalizePhone(from)
	if phone == "" {
		return nil, fmt.Errorf("empty sender")
	}

	user, err := d.deps.Store.FindUserByPhone(ctx, phone)
	if err == nil {
		if user.Language == "" {
			user.Language = "en"
		}
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	suffix := lastDigits(phone, 4)
	user = &storage.User{
		ID:           uuid.New().String(),
		Phone:        phone,
		Name:         "User " + suffix,
		BusinessName: "Business " + suffix,
		Language:     "en",
		CreatedAt:    d.cfg.Now(),
	}
	if err := d.deps.Store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	d.log.Info("registered new user", "user_id", user.ID, "phone", phone)
	return user, nil
}

func (d *Dispatcher) handleMedia(ctx context.Context, reqCtx *common.RequestContext, user *storage.User, in Inbound) Reply {
	for _, m := range in.Media {
		if strings.HasPrefix(strings.ToLower(m.ContentType), "audio/") {
			return d.processVoice(ctx, reqCtx, user, in.From, m)
		}
	}
	reqCtx.Logger().Info("ignoring non-audio media", "count", len(in.Media), "content_type", in.Media[0].ContentType)
	return replyWith(For(user.Language).OnlyVoice)
}

func (d *Dispatcher) handleText(ctx context.Context, reqCtx *common.RequestContext, user *storage.User, in Inbound) Reply {
	msgs := For(user.Language)

	// A pending draft claims every text message
	machine, err := d.loadMachine(ctx, reqCtx, user.ID)
	if err != nil {
		return replyWith(msgs.Error)
	}
	if machine.State() == pending.AwaitingPrices {
		return d.completeDraft(ctx, reqCtx, user, in, machine)
	}

	body := strings.ToLower(strings.TrimSpace(in.Body))

	if lang, ok := languageSwitch(body); ok {
		if err := d.deps.Store.SetUserLanguage(ctx, user.ID, lang); err != nil {
			reqCtx.LogError("language switch failed: %v", err)
			return replyWith(msgs.Error)
		}
		user.Language = lang
		return replyWith(For(lang).LanguageChanged)
	}

	switch {
	case strings.Contains(body, "help"):
		return replyWith(msgs.Help)
	case strings.Contains(body, "invoice") || strings.Contains(body, "list") || strings.Contains(body, "चालान"):
		invoices, err := d.deps.Store.ListInvoices(ctx, user.ID, recentInvoiceLimit)
		if err != nil {
			reqCtx.LogError("list invoices failed: %v", err)
			return replyWith(msgs.Error)
		}
		return replyWith(formatInvoiceList(invoices, msgs))
	case strings.Contains(body, "customer") || strings.Contains(body, "ग्राहक"):
		customers, err := d.deps.Store.ListCustomers(ctx, []string{user.ID}, customerListLimit)
		if err != nil {
			reqCtx.LogError("list customers failed: %v", err)
			return replyWith(msgs.Error)
		}
		return replyWith(formatCustomerList(customers, msgs))
	default:
		return replyWith(msgs.Welcome)
	}
}

// languageSwitch recognizes "language hindi" style commands. A message naming
// "language" without a known language is not a switch and falls through.
func languageSwitch(body string) (string, bool) {
	if !strings.Contains(body, "language") && !strings.Contains(body, "भाषा") {
		return "", false
	}
	switch {
	case strings.Contains(body, "hindi") || strings.Contains(body, "हिंदी"):
		return "hi", true
	case strings.Contains(body, "english") || strings.Contains(body, "अंग्रेजी"):
		return "en", true
	}
	return "", false
}

// deliver pushes text to the user out of band; when that is not possible the
// text is returned so the caller can answer inline instead.
func (d *Dispatcher) deliver(ctx context.Context, reqCtx *common.RequestContext, to, text string) (inline []string) {
	if d.deps.Messenger == nil {
		return []string{text}
	}
	if err := d.deps.Messenger.Send(ctx, to, text); err != nil {
		reqCtx.LogWarning("outbound send failed, replying inline: %v", err)
		return []string{text}
	}
	return nil
}
