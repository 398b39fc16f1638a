package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/media"
)

// defaultListLimit caps list reads when the caller passes 0
const defaultListLimit = 50

// Gateway implements entities.Store and entities.Reader on PostgreSQL
type Gateway struct {
	db *sql.DB
}

// NewGateway creates a new PostgreSQL entity gateway
func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

var (
	_ entities.Store  = (*Gateway)(nil)
	_ entities.Reader = (*Gateway)(nil)
)

// withTx runs fn in a transaction and commits if it returns nil
func (g *Gateway) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			log.Printf("Failed to rollback transaction: %v", rollbackErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(op, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify maps driver failures onto the entity error taxonomy.
// Connection-level failures become NetworkError; everything else is returned as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return entities.NewNetworkError(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return entities.NewNetworkError(op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08": // connection_exception
			return entities.NewNetworkError(op, err)
		case "57": // operator_intervention (admin shutdown, cancel)
			return entities.NewNetworkError(op, err)
		}
	}
	return err
}

// parseID rejects ids that cannot exist in a UUID column
func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, entities.ErrNotFound
	}
	return parsed, nil
}

func requireActor(actor entities.Actor) error {
	if !actor.IsAuthenticated() {
		return entities.ErrUnauthenticated
	}
	return nil
}

// mediaColumns flattens an optional media object into nullable columns
func mediaColumns(m *media.Object) (sql.NullString, sql.NullString, sql.NullInt64) {
	if m == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: m.Key, Valid: true},
		sql.NullString{String: m.MimeType, Valid: true},
		sql.NullInt64{Int64: int64(m.SizeBytes), Valid: true}
}

// mediaFromColumns rebuilds the optional media object
func mediaFromColumns(key, mimeType sql.NullString, size sql.NullInt64) *media.Object {
	if !key.Valid {
		return nil
	}
	return &media.Object{
		Key:       key.String,
		MimeType:  mimeType.String,
		SizeBytes: uint64(size.Int64),
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
