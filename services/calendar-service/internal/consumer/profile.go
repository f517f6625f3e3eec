package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

// TopicProfileUpdated carries account profile changes from the identity service.
const TopicProfileUpdated = "auth.user.profile.updated.v1"

type ProfileUpdated struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
}

type ProfileStore interface {
	RefreshProfile(ctx context.Context, tx pgx.Tx, userID, displayName, avatarRef string) (int64, error)
}

// ProfileHandler keeps signed-in participants' names and avatars current.
// Malformed payloads are logged and dropped.
func ProfileHandler(store ProfileStore, logger *slog.Logger) Handler {
	return func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		var evt ProfileUpdated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.ErrorContext(ctx, "invalid profile payload", "err", err, "topic", msg.Topic)
			return nil
		}
		evt.UserID = strings.TrimSpace(evt.UserID)
		evt.DisplayName = strings.TrimSpace(evt.DisplayName)
		if evt.UserID == "" || evt.DisplayName == "" {
			logger.ErrorContext(ctx, "profile event missing user_id or display_name", "topic", msg.Topic)
			return nil
		}
		n, err := store.RefreshProfile(ctx, tx, evt.UserID, evt.DisplayName, strings.TrimSpace(evt.AvatarRef))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.InfoContext(ctx, "participant profiles refreshed", "user_id", evt.UserID, "rows", n)
		}
		return nil
	}
}
