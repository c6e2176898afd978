package model

import "time"

// InventoryDelivery is one verified inventory_levels/update webhook.
type InventoryDelivery struct {
	DeliveryID      string
	Topic           string
	ShopDomain      string
	InventoryItemID string
	LocationID      string
	Available       int
	ReceivedAt      time.Time
}

type InventoryLevelSnapshot struct {
	InventoryItemID string
	Available       int
	UpdatedAt       time.Time
}

type RestockEvent struct {
	InventoryItemID string
	LocationID      string
	OldStock        int
	NewStock        int
	Delta           int
	ReceivedAt      time.Time
	Source          string
}

// SnapshotTransition is the result of applying one delivery to the stored snapshot.
type SnapshotTransition struct {
	Old        int
	New        int
	Delta      int
	FirstSight bool
}

// WentOutOfStock reports a transition from positive stock to exactly zero.
func (t SnapshotTransition) WentOutOfStock() bool {
	return t.Old > 0 && t.New == 0
}

func (t SnapshotTransition) Restocked() bool {
	return t.Delta > 0
}

// PreorderState is the live preorder view of the variant behind an inventory item.
type PreorderState struct {
	ResolvedVariant
	IsPreorder    bool
	PreorderLimit *int
}

type WebhookDebugEntry struct {
	InventoryItemID string
	Available       *int
	LocationID      string
	ReceivedAt      time.Time
	Headers         map[string]string
	Payload         []byte
}
