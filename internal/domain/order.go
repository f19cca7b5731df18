package domain

// OrderEvent é um retrato do pedido entregue pelo webhook da loja. Cada entrega é
// avaliada sozinha; mudanças de status posteriores do mesmo pedido são outros eventos.
type OrderEvent struct {
	ID           string     `json:"id"`
	BillingEmail string     `json:"billing_email"`
	Status       string     `json:"status"`
	LineItems    []LineItem `json:"line_items"`

	// Origem do evento, ex: "woocommerce" ou "stripe".
	Source string `json:"source"`
}

// LineItem leva só o identificador do produto; quantidade e preço não importam aqui.
type LineItem struct {
	ProductID string `json:"product_id"`
}

// HasProduct diz se algum item referencia um dos produtos informados.
func (o OrderEvent) HasProduct(products map[string]struct{}) bool {
	for _, item := range o.LineItems {
		if _, ok := products[item.ProductID]; ok {
			return true
		}
	}
	return false
}
