package publisher

type OrderEvent struct {
	OrderID      string  `json:"order_id"`
	SequenceID   string  `json:"sequence_id"`
	Status       string  `json:"status"`
	AmountCrypto float64 `json:"amount_crypto"`
	AmountFiat   float64 `json:"amount_fiat"`
	Currency     string  `json:"currency"`
	Actor        string  `json:"actor"`
	TxHash       string  `json:"tx_hash,omitempty"`
}
