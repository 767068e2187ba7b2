package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a row whose primary key is a uuid kept as text. recordKey
// returns nil for a nil record.
type keyedRecord interface {
	recordKey() *string
}

func (r *transactionRecord) recordKey() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

// textUUIDHandlers builds go-repository-bun handlers for rows keyed by an
// "id" text column. Keys that do not parse read back as uuid.Nil.
func textUUIDHandlers[T keyedRecord](newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			key := record.recordKey()
			if key == nil {
				return uuid.Nil
			}
			id, err := uuid.Parse(strings.TrimSpace(*key))
			if err != nil {
				return uuid.Nil
			}
			return id
		},
		SetID: func(record T, id uuid.UUID) {
			if key := record.recordKey(); key != nil {
				*key = id.String()
			}
		},
		GetIdentifier: func() string { return "id" },
		GetIdentifierValue: func(record T) string {
			if key := record.recordKey(); key != nil {
				return strings.TrimSpace(*key)
			}
			return ""
		},
	}
}

func transactionHandlers() repository.ModelHandlers[*transactionRecord] {
	return textUUIDHandlers(func() *transactionRecord { return &transactionRecord{} })
}
