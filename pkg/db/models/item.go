package models

import (
	"time"

	"gorm.io/datatypes"
)

// Item is one row of the shared key-value item table. PK groups related items
// (a seller, an order, a SKU); SK orders them inside the group.
type Item struct {
	PK        string         `gorm:"column:pk;primaryKey;type:text"`
	SK        string         `gorm:"column:sk;primaryKey;type:text"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb;not null"`
	Version   int64          `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (Item) TableName() string { return "items" }
