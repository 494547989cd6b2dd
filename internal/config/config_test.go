package config

import "testing"

func TestDefaultIsInvalidUntilDomainAndDBNamed(t *testing.T) {
	c := Default()
	if err := c.Verify(); err == nil {
		t.Fatal("expected Verify to fail on an unpopulated domain/db name")
	}
	c.Server.Domain = "test.example"
	c.Database.DatabaseName = "pgfedi"
	c.Database.UserName = "pgfedi"
	if err := c.Verify(); err != nil {
		t.Fatalf("Verify failed on an otherwise-complete config: %s", err)
	}
}

func TestDeliveryConfigRangeChecks(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DeliveryConfig)
		wantErr bool
	}{
		{"zero attempts", func(d *DeliveryConfig) { d.MaxDeliveryAttempts = 0 }, true},
		{"too many attempts", func(d *DeliveryConfig) { d.MaxDeliveryAttempts = 21 }, true},
		{"timeout too short", func(d *DeliveryConfig) { d.DeliveryTimeoutSeconds = 4 }, true},
		{"timeout too long", func(d *DeliveryConfig) { d.DeliveryTimeoutSeconds = 121 }, true},
		{"valid", func(d *DeliveryConfig) {}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Server.Domain = "test.example"
			c.Database.DatabaseName = "pgfedi"
			c.Database.UserName = "pgfedi"
			tt.mutate(&c.Delivery)
			err := c.Verify()
			if tt.wantErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		})
	}
}
