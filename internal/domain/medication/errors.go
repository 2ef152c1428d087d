package medication

import (
	"fmt"
	"net/http"
	"strings"
)

// StockShortfallError aborts a prescription when one or more medicines
// cannot cover the requested quantity. Every short medicine is listed.
type StockShortfallError struct {
	Items []Shortfall
}

func (e *StockShortfallError) Error() string {
	parts := make([]string, len(e.Items))
	for i, it := range e.Items {
		parts[i] = fmt.Sprintf("%s (requested %d, available %d)", it.MedicineName, it.Requested, it.Available)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *StockShortfallError) StatusCode() int { return http.StatusConflict }

func (e *StockShortfallError) Body() any {
	return shortfallBody{
		Error:   "insufficient_stock",
		Message: e.Error(),
		Items:   e.Items,
	}
}

type shortfallBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Items   []Shortfall `json:"items"`
}
