package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"soar/internal/model"
	"soar/internal/repo"
)

// storeRaw content-hashes payload and stores it through repo, returning
// the (possibly pre-existing) raw-message id: the raw-message record is
// the original wire bytes plus a content hash.
func storeRaw(ctx context.Context, raw repo.RawMessageRepo, source model.RawMessageSource, receiverID int64, receivedAt time.Time, payload []byte) (string, error) {
	sum := sha256.Sum256(payload)
	id := hex.EncodeToString(sum[:])
	return raw.Insert(ctx, &model.RawMessage{
		ID:         id,
		Source:     source,
		ReceivedAt: receivedAt,
		ReceiverID: receiverID,
		Bytes:      payload,
	})
}
