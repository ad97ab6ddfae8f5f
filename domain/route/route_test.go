package route_test

import (
	"testing"

	"github.com/whovisions/costgate/domain/route"
	"github.com/whovisions/costgate/domain/tier"
)

var (
	specs = []tier.Spec{
		{Name: "cost_saver"},
		{Name: "default"},
		{Name: "flash_thinking"},
		{Name: "unk_mode", MinSubscription: tier.SubPro},
		{Name: "ultrathink", MinSubscription: tier.SubPro},
	}

	table = route.Table{
		Bands: []route.Band{
			{Complexity: route.Trivial, Tier: "cost_saver"},
			{Complexity: route.Simple, Tier: "default"},
			{Complexity: route.Moderate, Tier: "flash_thinking"},
			{Complexity: route.Complex, Tier: "unk_mode"},
			{Complexity: route.Extreme, Tier: "ultrathink"},
		},
		Ladder: []string{"cost_saver", "default", "flash_thinking", "unk_mode", "ultrathink"},
	}
)

func TestSelect_DefaultBands(t *testing.T) {
	tests := []struct {
		complexity route.Complexity
		want       string
	}{
		{route.Trivial, "cost_saver"},
		{route.Simple, "default"},
		{route.Moderate, "flash_thinking"},
		{route.Complex, "unk_mode"},
		{route.Extreme, "ultrathink"},
	}

	for _, tt := range tests {
		got := route.Select(specs, table, tt.complexity, tier.SubPro, false)
		if got != tt.want {
			t.Errorf("Select(%s) = %s, want %s", tt.complexity, got, tt.want)
		}
	}
}

func TestSelect_DowngradesUnentitledCaller(t *testing.T) {
	// Free caller routed to a pro-gated tier lands on the nearest open tier.
	got := route.Select(specs, table, route.Extreme, tier.SubFree, false)
	if got != "flash_thinking" {
		t.Errorf("Select(extreme, free) = %s, want flash_thinking", got)
	}
}

func TestSelect_NearLimitDowngradesOneStep(t *testing.T) {
	got := route.Select(specs, table, route.Moderate, tier.SubFree, true)
	if got != "default" {
		t.Errorf("Select(moderate, nearLimit) = %s, want default", got)
	}
}

func TestSelect_NearLimitStillChecksEntitlement(t *testing.T) {
	// Pro caller on the extreme band steps down once, and the step target
	// (unk_mode) is still pro-gated, which the caller holds.
	got := route.Select(specs, table, route.Extreme, tier.SubPro, true)
	if got != "unk_mode" {
		t.Errorf("Select(extreme, pro, nearLimit) = %s, want unk_mode", got)
	}
}

func TestSelect_FloorAlwaysReachable(t *testing.T) {
	got := route.Select(specs, table, route.Trivial, tier.SubFree, true)
	if got != "cost_saver" {
		t.Errorf("Select(trivial, nearLimit) = %s, want floor cost_saver", got)
	}
}

func TestSelect_UnknownComplexityFallsBackToSimple(t *testing.T) {
	got := route.Select(specs, table, "mystery", tier.SubPro, false)
	if got != "default" {
		t.Errorf("Select(unknown) = %s, want default", got)
	}
}

func TestDefault_EmptyTable(t *testing.T) {
	if got := (route.Table{}).Default(route.Simple); got != "" {
		t.Errorf("Default() on empty table = %q, want empty", got)
	}
}
