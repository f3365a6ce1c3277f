package notify

import (
	"context"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
)

// Notification is a one-shot user alert.
type Notification struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	Prayer    prayer.Name `json:"prayer"`
	Window    string      `json:"window"`
	TimeOfDay string      `json:"timeOfDay"`
	At        time.Time   `json:"at"`
}

// Sink delivers notifications to the user. A sink without permission returns an
// AppError coded notification_permission_denied.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}
