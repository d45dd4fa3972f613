package models

// OrderCounter backs the human-readable sequential order number. A single row
// is incremented inside the order-creation transaction.
type OrderCounter struct {
	ID    int   `gorm:"column:id;primaryKey"`
	Value int64 `gorm:"column:value;not null"`
}
