package po

import "time"

// OrderCounterPO one row per numbering period ("order_YYYYMM")
type OrderCounterPO struct {
	ID        string `gorm:"primaryKey;size:32"`
	Seq       int64  `gorm:"not null"`
	UpdatedAt time.Time
}

func (OrderCounterPO) TableName() string {
	return "order_counters"
}

// IdempotencyKeyPO maps a checkout key to the order it created
type IdempotencyKeyPO struct {
	Key       string    `gorm:"column:idempotency_key;primaryKey;size:128"`
	OrderID   string    `gorm:"size:64;not null"`
	CreatedAt time.Time `gorm:"index;not null"`
}

func (IdempotencyKeyPO) TableName() string {
	return "idempotency_keys"
}
