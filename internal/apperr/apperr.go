// Package apperr defines the coded errors returned by the service layer and
// rendered by the HTTP layer as {success:false, error, code}.
package apperr

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeEmptyCart            Code = "EMPTY_CART"
	CodeInvalidPaymentMethod Code = "INVALID_PAYMENT_METHOD"
	CodeProductNotFound      Code = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock    Code = "INSUFFICIENT_STOCK"
	CodeNotFound             Code = "NOT_FOUND"
	CodeDuplicateSKU         Code = "DUPLICATE_SKU"
	CodeConflict             Code = "CONFLICT"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeCreateSale           Code = "CREATE_SALE_ERROR"
	CodeFetchSales           Code = "FETCH_SALES_ERROR"
	CodeInternal             Code = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus int
	// Public means the message written by the caller is safe to show the client.
	// For non-public codes the client sees PublicMessage.
	Public        bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:           {HTTPStatus: http.StatusBadRequest, Public: true, PublicMessage: "validation failed"},
	CodeEmptyCart:            {HTTPStatus: http.StatusBadRequest, Public: true, PublicMessage: "Cart is empty"},
	CodeInvalidPaymentMethod: {HTTPStatus: http.StatusBadRequest, Public: true, PublicMessage: "Invalid payment method"},
	CodeProductNotFound:      {HTTPStatus: http.StatusNotFound, Public: true, PublicMessage: "product not found"},
	CodeInsufficientStock:    {HTTPStatus: http.StatusBadRequest, Public: true, PublicMessage: "insufficient stock"},
	CodeNotFound:             {HTTPStatus: http.StatusNotFound, Public: true, PublicMessage: "resource not found"},
	CodeDuplicateSKU:         {HTTPStatus: http.StatusBadRequest, Public: true, PublicMessage: "SKU already exists"},
	CodeConflict:             {HTTPStatus: http.StatusConflict, Public: true, PublicMessage: "conflict detected"},
	CodeUnauthorized:         {HTTPStatus: http.StatusUnauthorized, Public: true, PublicMessage: "authentication required"},
	CodeForbidden:            {HTTPStatus: http.StatusForbidden, Public: true, PublicMessage: "access denied"},
	CodeRateLimited:          {HTTPStatus: http.StatusTooManyRequests, Public: true, PublicMessage: "too many attempts"},
	CodeCreateSale:           {HTTPStatus: http.StatusInternalServerError, Public: true, PublicMessage: "failed to create sale"},
	CodeFetchSales:           {HTTPStatus: http.StatusInternalServerError, Public: true, PublicMessage: "failed to fetch sales"},
	CodeInternal:             {HTTPStatus: http.StatusInternalServerError, Public: false, PublicMessage: "internal server error"},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details map[string]any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetail adds one key to the public details object.
func (e *Error) WithDetail(key string, value any) *Error {
	if e == nil {
		return nil
	}
	if e.details == nil {
		e.details = make(map[string]any, 2)
	}
	e.details[key] = value
	return e
}

func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e = e.WithDetail(k, v)
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the outermost *Error in err's chain.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsClientError reports whether err maps to a 4xx status.
func IsClientError(err error) bool {
	status := MetadataFor(CodeOf(err)).HTTPStatus
	return status >= 400 && status < 500
}
