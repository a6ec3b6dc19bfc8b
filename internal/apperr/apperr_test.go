package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseInChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeCreateSale, cause, "insert sale").WithDetail("step", "insert_sale")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeCreateSale, err.Code())
	assert.Equal(t, "insert_sale", err.Details()["step"])
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAsFindsTypedErrorThroughFmtWrapping(t *testing.T) {
	inner := New(CodeInsufficientStock, "Insufficient stock for Tea. Available: 1")
	outer := fmt.Errorf("checkout: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInsufficientStock, typed.Code())
	assert.Equal(t, CodeInsufficientStock, CodeOf(outer))
}

func TestCodeOfUntypedIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, IsClientError(errors.New("boom")))
}

func TestMetadataStatuses(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:           http.StatusBadRequest,
		CodeEmptyCart:            http.StatusBadRequest,
		CodeInvalidPaymentMethod: http.StatusBadRequest,
		CodeProductNotFound:      http.StatusNotFound,
		CodeInsufficientStock:    http.StatusBadRequest,
		CodeCreateSale:           http.StatusInternalServerError,
		Code("SOMETHING_ELSE"):   http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, MetadataFor(code).HTTPStatus, string(code))
	}
	assert.True(t, IsClientError(New(CodeEmptyCart, "Cart is empty")))
}
