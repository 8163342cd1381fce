package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrStockUnavailable is matched by every StockError.
	ErrStockUnavailable = errors.New("stock unavailable")
	// ErrNetwork marks transport failures and 5xx answers.
	ErrNetwork = errors.New("backend unreachable")
)

// StockError is an explicit inventory refusal.
type StockError struct {
	ProductID  string
	TemplateID string
	Requested  int
	Status     int
	Reason     string
}

func (e *StockError) Error() string {
	subject := "product " + e.ProductID
	if e.TemplateID != "" {
		subject = "template " + e.TemplateID
	}
	msg := fmt.Sprintf("stock unavailable for %s", subject)
	if e.Requested > 0 {
		msg += fmt.Sprintf(" (requested %d)", e.Requested)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *StockError) Unwrap() error { return ErrStockUnavailable }

// StatusError is a non-2xx answer from an endpoint without a richer mapping.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Status >= 500 {
		return ErrNetwork
	}
	return nil
}
