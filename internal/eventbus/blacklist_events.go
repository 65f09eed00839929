package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/google/uuid"
)

// EventBlacklistChanged тип события изменения черного списка
const EventBlacklistChanged = "BlacklistChanged"

// blacklistChangeVersion версия схемы Payload
const blacklistChangeVersion = 1

// ChangePublisher реализует blacklist.Notifier: каждое сохранённое
// изменение публикуется в шину от имени узла.
type ChangePublisher struct {
	bus    EventBus
	nodeID string
}

// NewChangePublisher создаёт публикатор изменений для узла nodeID.
func NewChangePublisher(bus EventBus, nodeID string) *ChangePublisher {
	return &ChangePublisher{bus: bus, nodeID: nodeID}
}

// BlacklistChanged публикует изменение.
func (p *ChangePublisher) BlacklistChanged(ctx context.Context, ch blacklist.Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return p.bus.Publish(ctx, &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    p.nodeID,
		EventType: EventBlacklistChanged,
		Version:   blacklistChangeVersion,
		Priority:  5,
		Payload:   payload,
		Metadata:  map[string]string{"zone": ch.Zone, "category": ch.Category.String()},
	})
}

// ChangeHandler получает изменения, сделанные другими узлами.
type ChangeHandler func(ctx context.Context, ch blacklist.Change)

// SubscribeChanges подписывается на изменения черного списка.
// События самого узла nodeID пропускаются: их состояние уже в памяти.
func SubscribeChanges(ctx context.Context, bus EventBus, nodeID string, h ChangeHandler) (Subscription, error) {
	return bus.Subscribe(ctx, Filter{Types: []string{EventBlacklistChanged}}, func(ctx context.Context, ev *Envelope) {
		if ev.Source == nodeID {
			return
		}
		ch, err := DecodeChange(ev)
		if err != nil {
			return
		}
		h(ctx, ch)
	})
}

// DecodeChange разбирает Payload события BlacklistChanged.
func DecodeChange(ev *Envelope) (blacklist.Change, error) {
	var ch blacklist.Change
	if ev.EventType != EventBlacklistChanged {
		return ch, fmt.Errorf("unexpected event type %q", ev.EventType)
	}
	if ev.Version > blacklistChangeVersion {
		return ch, fmt.Errorf("unsupported %s version %d", ev.EventType, ev.Version)
	}
	if err := json.Unmarshal(ev.Payload, &ch); err != nil {
		return ch, fmt.Errorf("unmarshal change: %w", err)
	}
	return ch, nil
}
