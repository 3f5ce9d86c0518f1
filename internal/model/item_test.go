package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestQuantityRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     QuantityRequest
		wantErr error
	}{
		{"positive quantity", QuantityRequest{Quantity: intPtr(3)}, nil},
		{"zero quantity", QuantityRequest{Quantity: intPtr(0)}, nil},
		{"negative quantity", QuantityRequest{Quantity: intPtr(-2)}, nil},
		{"missing quantity", QuantityRequest{}, ErrMissingQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			err := tt.req.Validate()

			// Assert
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuantityRequest_JSONUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantNil bool
		want    int
		wantErr bool
	}{
		{"integer", `{"quantity": 5}`, false, 5, false},
		{"missing field", `{}`, true, 0, false},
		{"string quantity", `{"quantity": "ten"}`, true, 0, true},
		{"float quantity", `{"quantity": 1.5}`, true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			var req QuantityRequest
			err := json.Unmarshal([]byte(tt.body), &req)

			// Assert
			if tt.wantErr {
				if err == nil {
					t.Error("Unmarshal() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if tt.wantNil {
				if req.Quantity != nil {
					t.Errorf("Quantity = %d, want nil", *req.Quantity)
				}
				return
			}
			if req.Quantity == nil || *req.Quantity != tt.want {
				t.Errorf("Quantity = %v, want %d", req.Quantity, tt.want)
			}
		})
	}
}

func TestValidateItem(t *testing.T) {
	tests := []struct {
		name    string
		item    string
		wantErr error
	}{
		{"simple", "apple", nil},
		{"numeric", "123", nil},
		{"max length", strings.Repeat("a", MaxItemLength), nil},
		{"max length counts characters", strings.Repeat("é", MaxItemLength), nil},
		{"empty", "", ErrEmptyItem},
		{"too long", strings.Repeat("a", MaxItemLength+1), ErrItemTooLong},
		{"invalid utf-8", "a\xffb", ErrItemNotUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			err := ValidateItem(tt.item)

			// Assert
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateItem() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_UsesJSONNames(t *testing.T) {
	// Act
	err := Validator().Struct(&QuantityRequest{})

	// Assert
	if err == nil {
		t.Fatal("Struct() should fail for a missing quantity")
	}
	if !strings.Contains(err.Error(), "'quantity'") {
		t.Errorf("error = %v, want the JSON field name", err)
	}
}

func TestAPIResponse_Success(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
	}{
		{"string data", "test"},
		{"item data", ItemQuantity{Item: "apple", Quantity: 7}},
		{"slice data", []ItemQuantity{{Item: "a"}, {Item: "b"}}},
		{"nil data", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			resp := NewSuccessResponse(tt.data)

			// Assert
			if !resp.Success {
				t.Errorf("Success = false, want true")
			}
			if resp.Error != "" {
				t.Errorf("Error = %s, want empty string", resp.Error)
			}
		})
	}
}

func TestAPIResponse_JSONMarshal(t *testing.T) {
	// Arrange
	resp := NewSuccessResponse(ItemQuantity{Item: "apple", Quantity: 7})

	// Act
	data, err := json.Marshal(resp)

	// Assert
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"success":true,"data":{"item":"apple","quantity":7}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestErrorResponse_JSONOmitEmpty(t *testing.T) {
	// Act
	data, err := json.Marshal(ErrorResponse{Code: 404, Message: "not found"})

	// Assert
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "details") {
		t.Errorf("details should be omitted: %s", data)
	}
}

func TestNewStockEvent(t *testing.T) {
	// Arrange
	before := time.Now().UTC()

	// Act
	event := NewStockEvent(StockEventAdded, "apple", 10, 17)

	// Assert
	after := time.Now().UTC()

	if event.ID == "" {
		t.Error("ID should be generated")
	}
	if event.Type != StockEventAdded {
		t.Errorf("Type = %s, want %s", event.Type, StockEventAdded)
	}
	if event.Item != "apple" || event.Delta != 10 || event.Quantity != 17 {
		t.Errorf("event = %+v, want apple/10/17", event)
	}
	if event.Timestamp.Before(before) || event.Timestamp.After(after) {
		t.Errorf("Timestamp = %v, should be between %v and %v", event.Timestamp, before, after)
	}
}

func TestNewStockEvent_UniqueIDs(t *testing.T) {
	// Act
	first := NewStockEvent(StockEventSaved, "", 0, 3)
	second := NewStockEvent(StockEventSaved, "", 0, 3)

	// Assert
	if first.ID == second.ID {
		t.Errorf("IDs should differ, both %s", first.ID)
	}
}
