package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/media"
)

// CreateReply inserts a reply and bumps the post's reply count atomically.
// Returns ErrNotFound when the post does not exist.
func (g *Gateway) CreateReply(ctx context.Context, actor entities.Actor, postID, body string, m *media.Object) (*entities.Reply, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	parent, err := parseID(postID)
	if err != nil {
		return nil, err
	}

	reply := &entities.Reply{
		ID:       uuid.NewString(),
		PostID:   parent.String(),
		AuthorID: actor.UserID,
		Body:     body,
		Media:    m,
	}
	key, mimeType, size := mediaColumns(m)

	err = g.withTx(ctx, "createReply", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts SET reply_count = reply_count + 1 WHERE id = $1`, parent)
		if err != nil {
			return classify("createReply", fmt.Errorf("failed to increment reply count: %w", err))
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check reply count update: %w", err)
		}
		if rowsAffected == 0 {
			return entities.ErrNotFound
		}

		query := `
			INSERT INTO replies (id, post_id, author_id, body, media_key, media_mime_type, media_size_bytes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`

		err = tx.QueryRowContext(ctx, query,
			reply.ID, parent, reply.AuthorID, reply.Body, key, mimeType, size,
		).Scan(&reply.CreatedAt)
		if err != nil {
			return classify("createReply", fmt.Errorf("failed to insert reply: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// DeleteReply removes a reply and its likes and decrements the post's reply count
func (g *Gateway) DeleteReply(ctx context.Context, actor entities.Actor, id string) (*entities.Deletion, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	replyID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var del *entities.Deletion
	err = g.withTx(ctx, "deleteReply", func(tx *sql.Tx) error {
		var postID, authorID string
		var mediaKey sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT post_id, author_id, media_key FROM replies WHERE id = $1 FOR UPDATE`, replyID,
		).Scan(&postID, &authorID, &mediaKey)
		if err == sql.ErrNoRows {
			return entities.ErrNotFound
		}
		if err != nil {
			return classify("deleteReply", fmt.Errorf("failed to lock reply: %w", err))
		}
		if authorID != actor.UserID {
			return entities.ErrUnauthorized
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE target_type = 'REPLY' AND target_id = $1`, replyID); err != nil {
			return classify("deleteReply", fmt.Errorf("failed to delete likes: %w", err))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE id = $1`, replyID); err != nil {
			return classify("deleteReply", fmt.Errorf("failed to delete reply: %w", err))
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET reply_count = GREATEST(0, reply_count - 1) WHERE id = $1`, postID); err != nil {
			return classify("deleteReply", fmt.Errorf("failed to decrement reply count: %w", err))
		}

		del = &entities.Deletion{
			Target:   entities.ReplyTarget(replyID.String()),
			AuthorID: authorID,
			PostID:   postID,
		}
		if mediaKey.Valid {
			del.MediaKeys = []string{mediaKey.String}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return del, nil
}

// ListReplies returns a post's replies, oldest first
func (g *Gateway) ListReplies(ctx context.Context, viewerID, postID string, limit int) ([]entities.ItemView, error) {
	parent, err := parseID(postID)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := g.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, parent).Scan(&exists); err != nil {
		return nil, classify("listReplies", fmt.Errorf("failed to check post: %w", err))
	}
	if !exists {
		return nil, entities.ErrNotFound
	}

	query := replySelect + ` WHERE r.post_id = $2 ORDER BY r.created_at ASC, r.id LIMIT $3`
	return g.queryItems(ctx, "listReplies", query, viewerID, parent, listLimit(limit))
}
