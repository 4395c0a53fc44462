package itemstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/db/models"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when no item exists under the key.
	ErrNotFound = errors.New("item not found")
	// ErrConditionFailed is returned when a conditional write loses: the key
	// already exists on Create, or the stored version moved on Update.
	ErrConditionFailed = errors.New("item condition failed")
)

// Key addresses one item.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string { return k.PK + "/" + k.SK }

func (k Key) validate() error {
	if k.PK == "" || k.SK == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item key requires pk and sk")
	}
	return nil
}

// Record is a stored item with its JSON document and version.
type Record struct {
	Key
	Data      json.RawMessage
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode unmarshals the item document into out.
func (r *Record) Decode(out any) error {
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode item %s: %w", r.Key, err)
	}
	return nil
}

// Store is the generic pk/sk item store shared by every component.
type Store interface {
	Get(ctx context.Context, key Key) (*Record, error)
	// Put writes doc unconditionally, bumping the version when the item exists.
	Put(ctx context.Context, key Key, doc any) (*Record, error)
	// Create writes doc only when no item exists under key.
	Create(ctx context.Context, key Key, doc any) (*Record, error)
	// Update replaces the document only while the stored version equals prev.Version.
	Update(ctx context.Context, prev *Record, doc any) (*Record, error)
	// Query lists the items of pk whose sk starts with skPrefix, ascending by sk.
	Query(ctx context.Context, pk, skPrefix string) ([]Record, error)
}

type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore returns a Store backed by the items table.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *gormStore) Get(ctx context.Context, key Key) (*Record, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("pk = ? AND sk = ?", key.PK, key.SK).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dependency(err, "get", key)
	}
	return toRecord(item), nil
}

func (s *gormStore) Put(ctx context.Context, key Key, doc any) (*Record, error) {
	item, err := s.newItem(key, doc)
	if err != nil {
		return nil, err
	}
	updates := clause.AssignmentColumns([]string{"data", "updated_at"})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "version"},
		Value:  gorm.Expr("items.version + 1"),
	})
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pk"}, {Name: "sk"}},
			DoUpdates: updates,
		}).
		Create(item).Error
	if err != nil {
		return nil, dependency(err, "put", key)
	}
	return s.Get(ctx, key)
}

func (s *gormStore) Create(ctx context.Context, key Key, doc any) (*Record, error) {
	item, err := s.newItem(key, doc)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item)
	if res.Error != nil {
		return nil, dependency(res.Error, "create", key)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConditionFailed
	}
	return toRecord(*item), nil
}

func (s *gormStore) Update(ctx context.Context, prev *Record, doc any) (*Record, error) {
	if prev == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "previous record is required")
	}
	if err := prev.Key.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode item document")
	}
	now := s.now()
	next := prev.Version + 1
	res := s.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("pk = ? AND sk = ? AND version = ?", prev.PK, prev.SK, prev.Version).
		Updates(map[string]any{
			"data":       datatypes.JSON(data),
			"version":    next,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, dependency(res.Error, "update", prev.Key)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, prev.Key); err != nil {
			return nil, err
		}
		return nil, ErrConditionFailed
	}
	return &Record{
		Key:       prev.Key,
		Data:      data,
		Version:   next,
		CreatedAt: prev.CreatedAt,
		UpdatedAt: now,
	}, nil
}

func (s *gormStore) Query(ctx context.Context, pk, skPrefix string) ([]Record, error) {
	if pk == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query requires pk")
	}
	q := s.db.WithContext(ctx).Where("pk = ?", pk)
	if skPrefix != "" {
		// substr keeps the match case-sensitive on both Postgres and SQLite.
		q = q.Where("substr(sk, 1, ?) = ?", utf8.RuneCountInString(skPrefix), skPrefix)
	}
	var items []models.Item
	if err := q.Order("sk ASC").Find(&items).Error; err != nil {
		return nil, dependency(err, "query", Key{PK: pk, SK: skPrefix + "*"})
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, *toRecord(item))
	}
	return records, nil
}

func (s *gormStore) newItem(key Key, doc any) (*models.Item, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode item document")
	}
	now := s.now()
	return &models.Item{
		PK:        key.PK,
		SK:        key.SK,
		Data:      datatypes.JSON(data),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func toRecord(item models.Item) *Record {
	return &Record{
		Key:       Key{PK: item.PK, SK: item.SK},
		Data:      json.RawMessage(item.Data),
		Version:   item.Version,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func dependency(err error, op string, key Key) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("item store %s %s", op, key))
}
