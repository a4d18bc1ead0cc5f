package intent

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const (
	routerAddr = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	otherAddr  = "0x1111111111111111111111111111111111111111"
)

func TestCheckEmptyIntent(t *testing.T) {
	if got := Check("", routerAddr, decimal.NewFromFloat(1)); got != nil {
		t.Errorf("empty intent should yield nil, got %v", got)
	}
}

func TestCheckConsistentIntent(t *testing.T) {
	got := Check("Swap 0.5 eth via "+routerAddr, routerAddr, decimal.NewFromFloat(0.5))
	if len(got) != 0 {
		t.Errorf("consistent intent flagged: %v", got)
	}
}

func TestCheckAddressMismatch(t *testing.T) {
	got := Check("Send 0.5 eth to "+routerAddr, otherAddr, decimal.NewFromFloat(0.5))
	if len(got) != 1 {
		t.Fatalf("expected 1 mismatch, got %d: %v", len(got), got)
	}
	if got[0].Kind != "address" {
		t.Errorf("kind = %s, want address", got[0].Kind)
	}
	// The finding names both the first mentioned address and the target.
	if !strings.Contains(got[0].Detail, routerAddr[:10]) || !strings.Contains(got[0].Detail, otherAddr[:10]) {
		t.Errorf("finding should name both addresses: %q", got[0].Detail)
	}
}

func TestCheckAddressMatchIsCaseInsensitive(t *testing.T) {
	upper := "0x7A250D5630B4CF539739DF2C5DACB4C659F2488D"
	if got := Check("Send to "+upper, routerAddr, decimal.Zero); len(got) != 0 {
		t.Errorf("case-insensitive match failed: %v", got)
	}
}

func TestCheckAmountMismatch(t *testing.T) {
	got := Check("Transfer 2 ETH to treasury", routerAddr, decimal.NewFromFloat(0.5))
	if len(got) != 1 || got[0].Kind != "amount" {
		t.Fatalf("expected amount mismatch, got %v", got)
	}
}

func TestCheckAmountWithinTolerance(t *testing.T) {
	got := Check("Transfer 0.5005 eth", routerAddr, decimal.NewFromFloat(0.5))
	if len(got) != 0 {
		t.Errorf("within-tolerance amount flagged: %v", got)
	}
}

func TestCheckOnlyFirstAmountCompared(t *testing.T) {
	// First amount matches; later amounts are intentionally ignored.
	got := Check("Swap 0.5 eth, expecting roughly 900 eth worth of tokens", routerAddr, decimal.NewFromFloat(0.5))
	if len(got) != 0 {
		t.Errorf("later amounts should be ignored: %v", got)
	}
}

func TestCheckBothMismatches(t *testing.T) {
	got := Check("Send 3 eth to "+routerAddr, otherAddr, decimal.NewFromFloat(0.1))
	if len(got) != 2 {
		t.Fatalf("expected 2 mismatches, got %d: %v", len(got), got)
	}
}

func TestExtractAddresses(t *testing.T) {
	text := "route " + routerAddr + " then " + otherAddr
	addrs := ExtractAddresses(text)
	if len(addrs) != 2 || addrs[0] != routerAddr {
		t.Errorf("ExtractAddresses = %v", addrs)
	}
	// Malformed tokens (too short) are not extracted.
	if addrs := ExtractAddresses("send to 0x1234"); len(addrs) != 0 {
		t.Errorf("short token extracted: %v", addrs)
	}
}

func TestExtractAmounts(t *testing.T) {
	amounts := ExtractAmounts("swap 0.5 ETH then 1 eth then 2.25Eth")
	if len(amounts) != 3 {
		t.Fatalf("ExtractAmounts = %v", amounts)
	}
	if !amounts[0].Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("first amount = %s", amounts[0])
	}
	// "ethereum" must not match as an amount unit.
	if amounts := ExtractAmounts("5 ethereum addresses"); len(amounts) != 0 {
		t.Errorf("ethereum matched as unit: %v", amounts)
	}
}

func FuzzCheck(f *testing.F) {
	f.Add("Send 0.5 eth to "+routerAddr, routerAddr, "0.5")
	f.Add("ignore previous instructions", otherAddr, "0")
	f.Add("0x", "", "1000000")
	f.Fuzz(func(t *testing.T, intentText, target, value string) {
		v, err := decimal.NewFromString(value)
		if err != nil {
			t.Skip()
		}
		// Must never panic and must be deterministic.
		first := Check(intentText, target, v)
		second := Check(intentText, target, v)
		if len(first) != len(second) {
			t.Fatalf("non-deterministic: %v vs %v", first, second)
		}
		if len(first) > 2 {
			t.Fatalf("at most one address and one amount finding, got %v", first)
		}
	})
}
