package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/pkg/logger"
)

var bucketName = []byte("conversations")

// ErrNotFound is returned by Edit for unknown conversations.
var ErrNotFound = errors.New("conversation not found")

// ConversationStore persists conversation metadata using BBolt
type ConversationStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewConversationStore creates a new conversation store with the given database path
func NewConversationStore(path string) (*ConversationStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("conversation store initialized", zap.String("path", path))
	return &ConversationStore{db: db, now: time.Now}, nil
}

// Put saves a conversation, replacing any previous record with the same ID
func (s *ConversationStore) Put(conv *models.Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation id is required")
	}
	conv.UpdatedAt = s.now()
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(conv.ID), data)
	})
}

// Get retrieves a conversation by ID
func (s *ConversationStore) Get(id string) (*models.Conversation, bool) {
	var conv *models.Conversation

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(id))
		if data == nil {
			return nil
		}
		conv = &models.Conversation{}
		return json.Unmarshal(data, conv)
	})
	if err != nil || conv == nil {
		return nil, false
	}
	return conv, true
}

// Edit applies fn to a stored conversation inside a single write transaction
func (s *ConversationStore) Edit(id string, fn func(*models.Conversation)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var conv models.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			return err
		}
		fn(&conv)
		conv.ID = id
		conv.UpdatedAt = s.now()
		updated, err := json.Marshal(&conv)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

// Append adds messages to a conversation inside a single write transaction,
// creating the conversation with auto rename enabled when it does not exist.
// It returns the stored record.
func (s *ConversationStore) Append(id string, msgs ...models.ConversationMessage) (*models.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation id is required")
	}
	conv := &models.Conversation{ID: id, ShouldAutoRename: true}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if data := b.Get([]byte(id)); data != nil {
			if err := json.Unmarshal(data, conv); err != nil {
				return err
			}
		}
		conv.ID = id
		conv.Messages = append(conv.Messages, msgs...)
		conv.UpdatedAt = s.now()
		updated, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Delete removes a conversation by ID
func (s *ConversationStore) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(id))
	})
}

// Close closes the database connection
func (s *ConversationStore) Close() error {
	return s.db.Close()
}
