package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию журнала сессий.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO session_timeline_events (session_id, type, reason, occurred)
		VALUES ($1,$2,$3,$4)
	`, event.SessionID, event.Type, event.Reason, event.Occurred); err != nil {
		return fmt.Errorf("append timeline event %s: %w", event.Type, err)
	}
	return nil
}

func (r *timelineRepository) List(sessionID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, type, reason, occurred
		FROM session_timeline_events
		WHERE session_id = $1
		ORDER BY occurred ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(&event.SessionID, &event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
