package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pixel-backend/internal/models"
)

type fakeEventStore struct {
	events  map[string][]*models.Event
	deleted map[string]int64
	err     error
}

func (f *fakeEventStore) FindByCustomerID(ctx context.Context, shopID int64, customerID string) ([]*models.Event, error) {
	return f.events[customerID], f.err
}

func (f *fakeEventStore) DeleteByCustomerID(ctx context.Context, shopID int64, customerID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := int64(len(f.events[customerID]))
	delete(f.events, customerID)
	if f.deleted == nil {
		f.deleted = make(map[string]int64)
	}
	f.deleted[customerID] += n
	return n, nil
}

type fakeShopRedactor struct {
	redacted    []int64
	uninstalled []string
	err         error
}

func (f *fakeShopRedactor) RedactShop(ctx context.Context, shopID int64) (int64, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.redacted = append(f.redacted, shopID)
	return 2, 1, nil
}

func (f *fakeShopRedactor) MarkUninstalled(ctx context.Context, domain string) error {
	if f.err != nil {
		return f.err
	}
	f.uninstalled = append(f.uninstalled, domain)
	return nil
}

type fakeExtensionDeactivator struct {
	statuses map[int64]string
}

func (f *fakeExtensionDeactivator) SetStatus(ctx context.Context, shopID int64, status string) error {
	if f.statuses == nil {
		f.statuses = make(map[int64]string)
	}
	f.statuses[shopID] = status
	return nil
}

func testShopModel() *models.Shop {
	return &models.Shop{ID: 42, ShopDomain: "demo.myshopify.com", IsInstalled: true}
}

func TestCustomerIDFromPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		want    string
	}{
		{"numeric id", map[string]interface{}{"customer": map[string]interface{}{"id": float64(7001)}}, "7001"},
		{"string id", map[string]interface{}{"customer": map[string]interface{}{"id": "7001"}}, "7001"},
		{"no customer", map[string]interface{}{"shop_domain": "demo.myshopify.com"}, ""},
		{"no id", map[string]interface{}{"customer": map[string]interface{}{"email": "a@b.c"}}, ""},
		{"nil payload", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := customerIDFromPayload(tt.payload); got != tt.want {
				t.Errorf("customerIDFromPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCustomerRedact(t *testing.T) {
	events := &fakeEventStore{events: map[string][]*models.Event{
		"7001": {{ID: 1}, {ID: 2}},
	}}
	svc := NewPrivacyService(events, &fakeShopRedactor{}, &fakeExtensionDeactivator{}, nil)
	payload := map[string]interface{}{"customer": map[string]interface{}{"id": float64(7001)}}

	if err := svc.CustomerRedact(context.Background(), testShopModel(), payload); err != nil {
		t.Fatalf("CustomerRedact() error = %v", err)
	}
	if events.deleted["7001"] != 2 {
		t.Errorf("deleted %d events, want 2", events.deleted["7001"])
	}

	// Second delivery finds nothing and still succeeds.
	if err := svc.CustomerRedact(context.Background(), testShopModel(), payload); err != nil {
		t.Errorf("repeat CustomerRedact() error = %v", err)
	}
}

func TestCustomerRedact_MissingCustomerID(t *testing.T) {
	events := &fakeEventStore{events: map[string][]*models.Event{"7001": {{ID: 1}}}}
	svc := NewPrivacyService(events, &fakeShopRedactor{}, &fakeExtensionDeactivator{}, nil)

	// A malformed payload is acknowledged without deleting anything.
	if err := svc.CustomerRedact(context.Background(), testShopModel(), map[string]interface{}{}); err != nil {
		t.Fatalf("CustomerRedact() error = %v", err)
	}
	if len(events.deleted) != 0 {
		t.Errorf("nothing should be deleted, got %v", events.deleted)
	}
}

func TestCustomerDataRequest(t *testing.T) {
	events := &fakeEventStore{events: map[string][]*models.Event{"7001": {{ID: 1}}}}
	svc := NewPrivacyService(events, &fakeShopRedactor{}, &fakeExtensionDeactivator{}, nil)
	payload := map[string]interface{}{"customer": map[string]interface{}{"id": "7001"}}

	if err := svc.CustomerDataRequest(context.Background(), testShopModel(), payload); err != nil {
		t.Fatalf("CustomerDataRequest() error = %v", err)
	}
	// Data requests are read-only.
	if len(events.events["7001"]) != 1 {
		t.Error("data request must not modify events")
	}
}

func TestShopRedact(t *testing.T) {
	shops := &fakeShopRedactor{}
	svc := NewPrivacyService(&fakeEventStore{}, shops, &fakeExtensionDeactivator{}, nil)

	if err := svc.ShopRedact(context.Background(), testShopModel(), nil); err != nil {
		t.Fatalf("ShopRedact() error = %v", err)
	}
	if len(shops.redacted) != 1 || shops.redacted[0] != 42 {
		t.Errorf("redacted = %v, want [42]", shops.redacted)
	}
}

func TestShopRedact_StorageError(t *testing.T) {
	shops := &fakeShopRedactor{err: errors.New("db down")}
	svc := NewPrivacyService(&fakeEventStore{}, shops, &fakeExtensionDeactivator{}, nil)

	if err := svc.ShopRedact(context.Background(), testShopModel(), nil); err == nil {
		t.Fatal("expected error when redaction fails")
	}
}

func TestAppUninstalled(t *testing.T) {
	shops := &fakeShopRedactor{}
	extensions := &fakeExtensionDeactivator{}
	svc := NewPrivacyService(&fakeEventStore{}, shops, extensions, nil)

	if err := svc.AppUninstalled(context.Background(), testShopModel(), nil); err != nil {
		t.Fatalf("AppUninstalled() error = %v", err)
	}
	if len(shops.uninstalled) != 1 || shops.uninstalled[0] != "demo.myshopify.com" {
		t.Errorf("uninstalled = %v", shops.uninstalled)
	}
	if extensions.statuses[42] != models.ExtensionStatusInactive {
		t.Errorf("extension status = %q, want inactive", extensions.statuses[42])
	}
	// Uninstall only clears credentials; a full redaction is a separate
	// webhook.
	if len(shops.redacted) != 0 {
		t.Error("uninstall must not redact the shop")
	}
}
