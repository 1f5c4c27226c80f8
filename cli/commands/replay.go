package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	strand "github.com/AshkanYarmoradi/go-strand"
	"github.com/AshkanYarmoradi/go-strand/adapters"
	redisstore "github.com/AshkanYarmoradi/go-strand/adapters/redis"
	"github.com/AshkanYarmoradi/go-strand/cli/config"
	"github.com/AshkanYarmoradi/go-strand/cli/styles"
	"github.com/AshkanYarmoradi/go-strand/queue/kafka"
)

// NewReplayCommand creates the replay command
func NewReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <event-id>",
		Short: "Re-dispatch a logged event",
		Long: `Load a logged event from the event log and re-enqueue it as a
fresh envelope with a new event ID and source "replay".

The event's dedup key is cleared first so the running bus
processes will dispatch it again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReplay,
	}

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	eventID, err := requireArg(cmd, args, 0, "event-id")
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	adapter, err := openAdapter(cfg)
	if err != nil {
		return err
	}
	defer adapter.Close()

	record, err := adapter.LoadEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		var dedupOpts []redisstore.Option
		if cfg.Redis.KeyPrefix != "" {
			dedupOpts = append(dedupOpts, redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix))
		}
		dedup := redisstore.NewDedupStoreFromAddr(cfg.Redis.Addr, dedupOpts...)
		defer dedup.Close()

		if err := dedup.Release(ctx, "strand:event:"+record.EventID); err != nil {
			fmt.Println(styles.FormatWarning("Failed to clear dedup key: " + err.Error()))
		}
	}

	replayed := buildReplayEnvelope(record)

	queue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer queue.Close()

	payload, err := strand.NewJSONSerializer().MarshalEvent(replayed)
	if err != nil {
		return err
	}

	enqueueOpts := adapters.EnqueueOptions{
		Attempts:         3,
		Backoff:          adapters.BackoffPolicy{Type: "exponential", Delay: time.Second},
		RemoveOnComplete: true,
	}
	if err := queue.Enqueue(ctx, strand.DefaultJobType, payload, enqueueOpts); err != nil {
		return err
	}

	fmt.Println(styles.FormatSuccess("Replay enqueued"))
	fmt.Println(styles.FormatKeyValue("Original Event", record.EventID))
	fmt.Println(styles.FormatKeyValue("New Event", replayed.ID))
	fmt.Println(styles.FormatKeyValue("Type", replayed.Type))
	return nil
}

// buildReplayEnvelope creates the fresh envelope for a logged event,
// preserving type, payload, tenant and correlation.
func buildReplayEnvelope(record *adapters.EventLogRecord) strand.Event {
	opts := []strand.EventOption{
		strand.WithSource("replay"),
		strand.WithEventVersion(record.Version),
	}
	if record.AggregateID != "" {
		opts = append(opts, strand.WithAggregate(record.AggregateID, 0))
	}
	if record.Metadata.CorrelationID != "" {
		opts = append(opts, strand.WithCorrelationID(record.Metadata.CorrelationID))
	}
	return strand.NewEvent(record.EventType, record.TenantID, record.Payload, opts...)
}

// openQueue builds the queue transport named in the config.
func openQueue(cfg *config.Config) (adapters.Queue, error) {
	switch cfg.Queue.Driver {
	case "kafka", "":
		opts := []kafka.Option{kafka.WithBrokers(cfg.Queue.Brokers...)}
		if cfg.Queue.TopicPrefix != "" {
			opts = append(opts, kafka.WithTopicPrefix(cfg.Queue.TopicPrefix))
		}
		return kafka.New(opts...), nil
	default:
		return nil, fmt.Errorf("queue.driver %q is not supported by the CLI; only kafka can be enqueued to", cfg.Queue.Driver)
	}
}
