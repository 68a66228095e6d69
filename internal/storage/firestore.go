package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/webfolio/authd/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Google Cloud Firestore.
//
// Layout under the configured collection prefix:
//
//	<prefix>_states/<state>     short-lived CSRF state records
//	<prefix>_sessions/<id>      session records
//	<prefix>_config/whitelist   the single whitelist record
//
// Firestore has no native per-document TTL the service can rely on at read
// time, so every record carries expires_at and reads enforce it; the
// cleanup manager sweeps leftovers.
type FirestoreStore struct {
	client      *firestore.Client
	statesCol   string
	sessionsCol string
	configCol   string
}

var _ Store = (*FirestoreStore)(nil)

type stateDoc struct {
	CodeVerifier string    `firestore:"code_verifier"`
	CreatedAt    time.Time `firestore:"created_at"`
	ExpiresAt    time.Time `firestore:"expires_at"`
}

type sessionDoc struct {
	UserID      string    `firestore:"user_id"`
	UserEmail   string    `firestore:"user_email"`
	UserName    string    `firestore:"user_name"`
	UserPicture string    `firestore:"user_picture,omitempty"`
	Token       string    `firestore:"token"`
	CreatedAt   time.Time `firestore:"created_at"`
	ExpiresAt   time.Time `firestore:"expires_at"`
}

type whitelistDoc struct {
	Emails    []string  `firestore:"emails"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestoreStore creates a Firestore-backed store.
func NewFirestoreStore(ctx context.Context, projectID, database, collectionPrefix string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collectionPrefix == "" {
		return nil, fmt.Errorf("collection prefix is required")
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &FirestoreStore{
		client:      client,
		statesCol:   collectionPrefix + "_states",
		sessionsCol: collectionPrefix + "_sessions",
		configCol:   collectionPrefix + "_config",
	}, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) PutState(ctx context.Context, state string, record StateRecord) error {
	_, err := s.client.Collection(s.statesCol).Doc(state).Set(ctx, stateDoc{
		CodeVerifier: record.CodeVerifier,
		CreatedAt:    record.CreatedAt,
		ExpiresAt:    record.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("writing state record: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ConsumeState(ctx context.Context, state string) (StateRecord, error) {
	ref := s.client.Collection(s.statesCol).Doc(state)

	var doc stateDoc
	// Read-then-delete inside a transaction so two concurrent callbacks
	// with the same state cannot both succeed.
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decoding state record: %w", err)
		}
		return tx.Delete(ref)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return StateRecord{}, ErrStateNotFound
		}
		return StateRecord{}, fmt.Errorf("consuming state record: %w", err)
	}

	record := StateRecord{
		CodeVerifier: doc.CodeVerifier,
		CreatedAt:    doc.CreatedAt,
		ExpiresAt:    doc.ExpiresAt,
	}
	if record.Expired(time.Now()) {
		return StateRecord{}, ErrStateNotFound
	}
	return record, nil
}

func (s *FirestoreStore) PutSession(ctx context.Context, id string, record SessionRecord) error {
	_, err := s.client.Collection(s.sessionsCol).Doc(id).Set(ctx, sessionDoc{
		UserID:      record.User.ID,
		UserEmail:   record.User.Email,
		UserName:    record.User.Name,
		UserPicture: record.User.Picture,
		Token:       record.Token,
		CreatedAt:   record.CreatedAt,
		ExpiresAt:   record.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	snap, err := s.client.Collection(s.sessionsCol).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return SessionRecord{}, ErrSessionNotFound
		}
		return SessionRecord{}, fmt.Errorf("reading session record: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return SessionRecord{}, fmt.Errorf("decoding session record: %w", err)
	}

	return SessionRecord{
		User: User{
			ID:      doc.UserID,
			Email:   doc.UserEmail,
			Name:    doc.UserName,
			Picture: doc.UserPicture,
		},
		Token:     doc.Token,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

func (s *FirestoreStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.client.Collection(s.sessionsCol).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("deleting session record: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetWhitelist(ctx context.Context) ([]string, error) {
	snap, err := s.client.Collection(s.configCol).Doc("whitelist").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrWhitelistNotFound
		}
		return nil, fmt.Errorf("reading whitelist: %w", err)
	}

	var doc whitelistDoc
	if err := snap.DataTo(&doc); err != nil {
		// A malformed record is indistinguishable from an absent one for
		// authorization purposes: fail closed.
		return nil, fmt.Errorf("decoding whitelist: %w", err)
	}
	return doc.Emails, nil
}

func (s *FirestoreStore) PutWhitelist(ctx context.Context, emails []string) error {
	_, err := s.client.Collection(s.configCol).Doc("whitelist").Set(ctx, whitelistDoc{
		Emails:    emails,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("writing whitelist: %w", err)
	}
	return nil
}

func (s *FirestoreStore) CleanupExpired(ctx context.Context) (int, error) {
	count := 0
	for _, col := range []string{s.statesCol, s.sessionsCol} {
		n, err := s.deleteExpired(ctx, col)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func (s *FirestoreStore) deleteExpired(ctx context.Context, col string) (int, error) {
	iter := s.client.Collection(col).
		Where("expires_at", "<", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("querying expired records in %s: %w", col, err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			// Best effort: the next sweep or a lazy read will catch it.
			log.LogWarnWithFields("storage", "Failed to delete expired record", map[string]any{
				"collection": col,
				"doc":        snap.Ref.ID,
				"error":      err.Error(),
			})
			continue
		}
		count++
	}
	return count, nil
}
