package command

// Reservation Commands
type ReserveStock struct {
	ProductID     string `json:"product_id"`
	Channel       string `json:"channel"`
	Amount        int    `json:"amount"`
	CorrelationID string `json:"correlation_id"`
	TTLSeconds    int    `json:"ttl_seconds,omitempty"`
}

type ReleaseStock struct {
	ProductID     string `json:"product_id"`
	Channel       string `json:"channel"`
	Amount        int    `json:"amount"`
	CorrelationID string `json:"correlation_id"`
	Reason        string `json:"reason,omitempty"`
}

type AllocateStock struct {
	ProductID  string `json:"product_id"`
	Channel    string `json:"channel"`
	Amount     int    `json:"amount"`
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id,omitempty"`
}

// Supply Commands
type ReplenishStock struct {
	ProductID string            `json:"product_id"`
	Channel   string            `json:"channel"`
	Amount    int               `json:"amount"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type SyncStock struct {
	ProductID      string `json:"product_id"`
	Channel        string `json:"channel"`
	TargetQuantity int    `json:"target_quantity"`
	Source         string `json:"source"`
}

type SyncProduct struct {
	ProductID string   `json:"product_id"`
	Channels  []string `json:"channels"`
	Source    string   `json:"source"`
}
