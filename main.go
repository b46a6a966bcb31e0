package labelmatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/redis/go-redis/v9"

	"github.com/liteapi-travel/label-matcher-async/internal/app"
	"github.com/liteapi-travel/label-matcher-async/internal/config"
	"github.com/liteapi-travel/label-matcher-async/internal/export"
	"github.com/liteapi-travel/label-matcher-async/internal/logging"
	"github.com/liteapi-travel/label-matcher-async/internal/recognize"
	"github.com/liteapi-travel/label-matcher-async/internal/session"
	"github.com/liteapi-travel/label-matcher-async/internal/store"
)

// FunctionName is the CloudEvent function target.
const FunctionName = "label-events"

const (
	defaultBatchKey = "label_events"
	// pushTimeout bounds queueing a reply once the event context has ended.
	pushTimeout = 10 * time.Second
)

var (
	botOnce sync.Once
	bot     *Bot
	botErr  error
)

func init() {
	functions.CloudEvent(FunctionName, labelEvents)
}

type MessagePublishedData struct {
	Message PubSubMessage `json:"message"`
}

type PubSubMessage struct {
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes"`
	MessageID  string            `json:"messageId"`
}

// Message kinds produced by the chat transport.
const (
	KindText     = "text"
	KindImage    = "image"
	KindDocument = "document"
)

// InboundMessage is one chat message, already downloaded and decoded by the
// transport.
type InboundMessage struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Media     []byte `json:"media,omitempty"`
}

// Outbox receives replies for the chat transport.
type Outbox interface {
	PushReply(ctx context.Context, chatID, text string) error
	Deliverer(chatID string) export.Deliverer
}

// Claimer records which messages were already handled.
type Claimer interface {
	Claim(ctx context.Context, batchKey, processingID string) (bool, error)
}

// Bot routes chat messages to the session controller and queues the replies.
type Bot struct {
	Controller *session.Controller
	Outbox     Outbox
	Claims     Claimer
	Commands   config.Commands
	Logger     *log.Logger
}

func labelEvents(ctx context.Context, e event.Event) error {
	batchKey, processingID, msg, err := decodeEvent(e)
	if err != nil {
		return err
	}
	b, err := loadBot()
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}
	return b.Process(ctx, batchKey, processingID, msg)
}

func decodeEvent(e event.Event) (string, string, InboundMessage, error) {
	var data MessagePublishedData
	if err := e.DataAs(&data); err != nil {
		return "", "", InboundMessage{}, fmt.Errorf("event.DataAs: %v", err)
	}
	var msg InboundMessage
	if err := json.Unmarshal(data.Message.Data, &msg); err != nil {
		return "", "", InboundMessage{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	batchKey := data.Message.Attributes["batchKey"]
	if batchKey == "" {
		batchKey = defaultBatchKey
	}
	processingID := data.Message.Attributes["processingId"]
	if processingID == "" {
		processingID = msg.MessageID
	}
	if processingID == "" {
		processingID = data.Message.MessageID
	}
	if processingID == "" {
		processingID = e.ID()
	}
	return batchKey, processingID, msg, nil
}

func loadBot() (*Bot, error) {
	botOnce.Do(func() {
		bot, botErr = newBot(os.Getenv("LABEL_CONFIG"))
	})
	return bot, botErr
}

func newBot(configPath string) (*Bot, error) {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	sink, err := logging.Open(cfg.Log.Dir, cfg.Log.TimeZone, os.Stdout)
	if err != nil {
		return nil, err
	}
	logger := sink.Logger("INFO")

	recognizer, err := app.NewRecognizer(cfg, logger)
	if err != nil {
		return nil, err
	}
	controller, err := app.NewController(cfg, recognizer, logger)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr(),
	})
	st := store.New(redisClient, store.Options{
		Prefix:       cfg.Redis.Prefix,
		ProcessedTTL: cfg.Redis.ProcessedTTL,
		ReplyTTL:     cfg.Redis.ReplyTTL,
		Logger:       logger,
	})

	logger.Printf("Label bot ready (threshold %.2f, provider %s)", cfg.Threshold, cfg.Recognition.Provider)
	return &Bot{
		Controller: controller,
		Outbox:     st,
		Claims:     st,
		Commands:   cfg.Commands,
		Logger:     logger,
	}, nil
}

// Process handles one inbound message exactly once per processing ID.
func (b *Bot) Process(ctx context.Context, batchKey, processingID string, msg InboundMessage) error {
	if b.Claims != nil && processingID != "" {
		claimed, err := b.Claims.Claim(ctx, batchKey, processingID)
		if err != nil {
			b.logf("Error checking idempotency key: %v", err)
		} else if !claimed {
			b.logf("Message %s for batch %s already processed, skipping", processingID, batchKey)
			return nil
		}
	}

	reply, err := b.dispatch(ctx, msg)
	if err != nil {
		return fmt.Errorf("process message %s: %w", processingID, err)
	}
	if reply.Text == "" {
		return nil
	}
	// The message is already claimed, so its reply must be queued even when
	// the event deadline passed while the photo was being matched.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := b.Outbox.PushReply(pushCtx, msg.ChatID, reply.Text); err != nil {
		b.logf("Failed to queue reply for %s: %v", msg.ChatID, err)
		return err
	}
	return nil
}

func (b *Bot) dispatch(ctx context.Context, msg InboundMessage) (session.Reply, error) {
	switch msg.Kind {
	case KindImage:
		b.logf("Received image from %s (%d bytes)", msg.ChatID, len(msg.Media))
		return b.Controller.SubmitImage(ctx, recognize.Image{Data: msg.Media, MIMEType: msg.MimeType}, strings.TrimSpace(msg.Caption))
	case KindDocument:
		b.logf("Received document %q from %s", msg.FileName, msg.ChatID)
		return b.Controller.LoadReferenceFile(ctx, msg.FileName, msg.MimeType, msg.Media)
	case KindText:
		return b.command(ctx, msg)
	default:
		b.logf("Ignoring message of kind %q from %s", msg.Kind, msg.ChatID)
		return session.Reply{}, nil
	}
}

func (b *Bot) command(ctx context.Context, msg InboundMessage) (session.Reply, error) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return session.Reply{}, nil
	}
	switch name := fields[0]; {
	case strings.EqualFold(name, b.Commands.Reference):
		return b.Controller.BeginReference(ctx)
	case strings.EqualFold(name, b.Commands.Start):
		return b.Controller.StartSession(ctx)
	case strings.EqualFold(name, b.Commands.End):
		return b.Controller.EndSession(ctx, b.Outbox.Deliverer(msg.ChatID))
	default:
		b.logf("Received message from %s: %s", msg.ChatID, msg.Text)
		return session.Reply{}, nil
	}
}

func (b *Bot) logf(format string, args ...any) {
	if b.Logger != nil {
		b.Logger.Printf(format, args...)
	}
}
