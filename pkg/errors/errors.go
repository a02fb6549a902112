package errors

import (
	"fmt"
)

// ErrorCategory represents the category of error for handling
type ErrorCategory string

const (
	CategoryConfiguration    ErrorCategory = "configuration"     // incomplete merchant setup, fatal at startup
	CategoryValidation       ErrorCategory = "validation"        // malformed buyer/admin input, no side effects
	CategorySecurityMismatch ErrorCategory = "security_mismatch" // callback fields disagree with the stored order
	CategoryBankRejection    ErrorCategory = "bank_rejection"    // bank answered with a non-"00" code
	CategoryTransport        ErrorCategory = "transport"         // network error, malformed XML, SOAP fault
	CategoryNotification     ErrorCategory = "notification"      // email delivery, never affects payment state
)

// PaymentError represents a payment processing error with detailed context
type PaymentError struct {
	Code        string
	Message     string
	BankMessage string
	Category    ErrorCategory
	Details     map[string]interface{}
}

func (e *PaymentError) Error() string {
	if e.BankMessage != "" {
		return fmt.Sprintf("%s: %s (bank: %s)", e.Code, e.Message, e.BankMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, category ErrorCategory) *PaymentError {
	return &PaymentError{
		Code:     code,
		Message:  message,
		Category: category,
		Details:  make(map[string]interface{}),
	}
}

// WithBankMessage attaches the bank's own message to the error
func (e *PaymentError) WithBankMessage(msg string) *PaymentError {
	e.BankMessage = msg
	return e
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
