package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeInsufficientStock, http.StatusConflict},
		{CodeInsufficientReserved, http.StatusConflict},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeDependency, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal metadata, got %+v", meta)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(CodeDependency, cause, "reserve stock")
	if err.Unwrap() != cause {
		t.Fatal("expected wrapped cause")
	}
	if !HasCode(err, CodeDependency) {
		t.Fatalf("expected dependency code, got %s", err.Code())
	}
}

func TestAsThroughWrappedChain(t *testing.T) {
	inner := New(CodeInsufficientStock, "variant out of stock")
	outer := fmt.Errorf("create order: %w", inner)
	typed := As(outer)
	if typed == nil || typed.Code() != CodeInsufficientStock {
		t.Fatalf("expected insufficient stock code, got %v", typed)
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeConflict, fmt.Errorf("root"), "outer")
	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
	if dump.DB != nil {
		t.Fatalf("expected no db dump for a plain error, got %+v", dump.DB)
	}
}

func TestDumpCarriesDetails(t *testing.T) {
	err := New(CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"variant_id": "v1", "qty": 3})
	dump := Dump(err)
	if dump.Details["variant_id"] != "v1" {
		t.Fatalf("expected details in dump, got %+v", dump.Details)
	}
}

func TestDumpExtractsDriverError(t *testing.T) {
	cause := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "orders_order_number_key",
		TableName:      "orders",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeDependency, fmt.Errorf("persist order: %w", cause), "create order")
	dump := Dump(err)
	if dump.DB == nil {
		t.Fatal("expected db dump")
	}
	if dump.DB.Code != "23505" || dump.DB.Table != "orders" {
		t.Fatalf("unexpected db dump: %+v", dump.DB)
	}
	if dump.DB.Hint != "order number already allocated" {
		t.Fatalf("expected constraint hint, got %q", dump.DB.Hint)
	}
}
