package xid

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestSaleNumberShape(t *testing.T) {
	pattern := regexp.MustCompile(`^SALE-\d+-[0-9a-f]{8}$`)
	first, second := SaleNumber(), SaleNumber()
	if !pattern.MatchString(first) {
		t.Fatalf("unexpected sale number %q", first)
	}
	if first == second {
		t.Fatalf("expected distinct sale numbers, got %q twice", first)
	}
}

func TestBatchNumberUsesMillis(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := BatchNumber(at); got != "BATCH-1700000000123" {
		t.Fatalf("unexpected batch number %q", got)
	}
}

func TestStoreCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := StoreCode()
		if len(code) != StoreCodeLength {
			t.Fatalf("expected %d chars, got %q", StoreCodeLength, code)
		}
		for _, r := range code {
			if !strings.ContainsRune(storeCodeAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, code)
			}
		}
	}
}
