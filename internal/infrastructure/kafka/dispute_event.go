package publisher

type DisputeEvent struct {
	DisputeID  string `json:"dispute_id"`
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	Resolution string `json:"resolution,omitempty"`
	OpenedBy   string `json:"opened_by,omitempty"`
}
