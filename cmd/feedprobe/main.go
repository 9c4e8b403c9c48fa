// Command feedprobe publishes a synthetic change-feed event, for poking a
// locally running sync core without a real backend emitting changes.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"catmatch/internal/domain/chat"
	"catmatch/internal/infra/config"
	"catmatch/internal/infra/feed/kafka"
	"catmatch/internal/infra/obs"
)

func main() {
	table := flag.String("table", chat.TableMessages, "source table: messages or conversations")
	kind := flag.String("kind", string(chat.EventInserted), "event kind: inserted, updated or deleted")
	conversation := flag.String("conversation", "", "conversation id the row belongs to")
	sender := flag.String("sender", "", "sender user id (messages)")
	adopter := flag.String("adopter", "", "adopter user id (conversations)")
	rehomer := flag.String("rehomer", "", "rehomer user id (conversations)")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger(os.Getenv("APP_ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	if strings.TrimSpace(*conversation) == "" {
		logger.Error("-conversation is required")
		os.Exit(1)
	}

	now := time.Now().UTC()
	row := chat.Row{
		ConversationID: chat.ConversationID(*conversation),
		SenderID:       chat.UserID(*sender),
		AdopterID:      chat.UserID(*adopter),
		RehomerID:      chat.UserID(*rehomer),
		CreatedAt:      now,
		LastMessageAt:  now,
	}
	if *table == chat.TableMessages {
		row.MessageID = chat.MessageID(uuid.NewString())
	}

	event := chat.FeedEvent{
		Kind:  chat.EventKind(*kind),
		Table: *table,
		New:   &row,
	}
	payload, err := kafka.EncodeEvent(uuid.NewString(), event, now)
	if err != nil {
		logger.Error("encode event failed", "error", err)
		os.Exit(1)
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.ClientID+"-probe")
	if err != nil {
		logger.Error("producer connect failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	topic := cfg.KafkaTopicPrefix + topicFor(*table)
	if err := producer.Publish(context.Background(), topic, *conversation, payload); err != nil {
		logger.Error("publish failed", "topic", topic, "error", err)
		os.Exit(1)
	}
	logger.Info("event published", "topic", topic, "table", *table, "kind", *kind, "conversation", *conversation)
}

func topicFor(table string) string {
	if table == chat.TableConversations {
		return "chat.conversations.events.v1"
	}
	return "chat.messages.events.v1"
}
