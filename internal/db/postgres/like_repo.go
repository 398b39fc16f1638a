package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Moxie/internal/core/entities"
)

// likeTables maps a target type to the table holding its like_count
var likeTables = map[entities.TargetType]string{
	entities.TargetPost:  "posts",
	entities.TargetReply: "replies",
}

// ToggleLike removes the actor's like on target if present, otherwise creates it.
// The target row is locked so the like row and the denormalized count move together.
func (g *Gateway) ToggleLike(ctx context.Context, actor entities.Actor, target entities.Target) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return err
	}
	targetID, err := parseID(target.ID)
	if err != nil {
		return err
	}
	table := likeTables[target.Type]

	return g.withTx(ctx, "toggleLike", func(tx *sql.Tx) error {
		var locked int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM `+table+` WHERE id = $1 FOR UPDATE`, targetID).Scan(&locked)
		if err == sql.ErrNoRows {
			return entities.ErrNotFound
		}
		if err != nil {
			return classify("toggleLike", fmt.Errorf("failed to lock target: %w", err))
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE user_id = $1 AND target_type = $2 AND target_id = $3`,
			actor.UserID, string(target.Type), targetID)
		if err != nil {
			return classify("toggleLike", fmt.Errorf("failed to delete like: %w", err))
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check like removal: %w", err)
		}

		if removed > 0 {
			_, err = tx.ExecContext(ctx,
				`UPDATE `+table+` SET like_count = GREATEST(0, like_count - 1) WHERE id = $1`, targetID)
			if err != nil {
				return classify("toggleLike", fmt.Errorf("failed to decrement like count: %w", err))
			}
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO likes (user_id, target_type, target_id) VALUES ($1, $2, $3)`,
			actor.UserID, string(target.Type), targetID)
		if err != nil {
			if isUniqueViolation(err) {
				// Cannot happen while the target row is locked; treat as already liked
				return nil
			}
			return classify("toggleLike", fmt.Errorf("failed to insert like: %w", err))
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE `+table+` SET like_count = like_count + 1 WHERE id = $1`, targetID)
		if err != nil {
			return classify("toggleLike", fmt.Errorf("failed to increment like count: %w", err))
		}
		return nil
	})
}
