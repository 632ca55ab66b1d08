package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

func fixedExtractor(t *testing.T) *RegexExtractor {
	t.Helper()
	e := NewRegexExtractor()
	e.now = func() time.Time {
		return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestExtractWalmartReceipt(t *testing.T) {
	text := "Walmart\n01/15/2024\nMilk 3.99\nBread 2.49\nTOTAL $6.48"

	receipt := fixedExtractor(t).Extract(text)

	assert.Equal(t, "Walmart", receipt.Store)
	assert.Equal(t, "01/15/2024", receipt.Date)
	assert.Equal(t, 6.48, receipt.Total)

	require.Len(t, receipt.Items, 2)
	assert.Equal(t, domain.ReceiptItem{Name: "Milk", Price: 3.99}, receipt.Items[0])
	assert.Equal(t, domain.ReceiptItem{Name: "Bread", Price: 2.49}, receipt.Items[1])
}

func TestExtractIsTotalOnAnyInput(t *testing.T) {
	inputs := []string{
		"",
		"   \n\n   ",
		"complete garbage with no structure",
		strings.Repeat("$$$ 99 . 99 total total total\n", 50),
		"\x00\x01\x02 binary-ish junk $",
	}

	for _, text := range inputs {
		receipt := fixedExtractor(t).Extract(text)
		require.NotNil(t, receipt)
		assert.NotEmpty(t, receipt.Store)
		assert.NotEmpty(t, receipt.Date)
		assert.NotNil(t, receipt.Items)
		assert.NotNil(t, receipt.AdvancedData)
		assert.GreaterOrEqual(t, receipt.Total, 0.0)
	}
}

func TestExtractEmptyTextFallsBackToSentinels(t *testing.T) {
	receipt := fixedExtractor(t).Extract("")

	assert.Equal(t, domain.UnknownStore, receipt.Store)
	assert.Equal(t, "03/10/2024", receipt.Date)
	assert.Equal(t, 0.0, receipt.Total)
	assert.Empty(t, receipt.Items)
}

func TestExtractTotalPrefersLabeledAmount(t *testing.T) {
	// the labeled total wins even when a larger amount appears elsewhere
	text := "SuperMart\nCaviar 99.99\nMember price 120.00\nTotal: $45.67"
	receipt := fixedExtractor(t).Extract(text)
	assert.Equal(t, 45.67, receipt.Total)
}

func TestExtractTotalFallsBackToLargestAmount(t *testing.T) {
	text := "SuperMart\nItem one 3.50\nItem two 12.75\nItem three 1.25"
	receipt := fixedExtractor(t).Extract(text)
	assert.Equal(t, 12.75, receipt.Total)
}

func TestExtractDateFormats(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "numeric slashes", text: "store\n01/15/2024\n", want: "01/15/2024"},
		{name: "numeric dashes", text: "store\n1-5-24\n", want: "1-5-24"},
		{name: "month name", text: "store\nJan 15, 2024\n", want: "Jan 15, 2024"},
		{name: "day first", text: "store\n15 January 2024\n", want: "15 January 2024"},
		{name: "iso", text: "store\n2024-01-15\n", want: "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt := fixedExtractor(t).Extract(tt.text)
			assert.Equal(t, tt.want, receipt.Date)
		})
	}
}

func TestExtractStoreSkipsGenericHeaders(t *testing.T) {
	text := "RECEIPT\nThank you\nCorner Deli\nCoffee 2.50"
	receipt := fixedExtractor(t).Extract(text)
	assert.Equal(t, "Corner Deli", receipt.Store)
}

func TestExtractStoreKnownChainBeatsEarlierLines(t *testing.T) {
	text := "Customer copy\n123 Main St\nTarget Store #1234\nSocks 8.99"
	receipt := fixedExtractor(t).Extract(text)
	assert.Equal(t, "Target Store #1234", receipt.Store)
}

func TestExtractItemsSkipsSummaryLines(t *testing.T) {
	text := "Kroger\nEggs 4.29\nSubtotal 4.29\nTax 0.30\nChange 5.41\nTotal 4.59"
	receipt := fixedExtractor(t).Extract(text)

	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "Eggs", receipt.Items[0].Name)
}

func TestExtractItemsRejectsImplausiblePrices(t *testing.T) {
	// a price far above the total is a mis-read, not an item
	text := "Kroger\nEggs 4.29\nCard 9999.99\nPhantom 450.00\nTotal 4.59"
	receipt := fixedExtractor(t).Extract(text)

	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "Eggs", receipt.Items[0].Name)
}

func TestExtractAdvancedData(t *testing.T) {
	text := strings.Join([]string{
		"Walgreens",
		"Receipt #: A12345",
		"Cashier: Pat Smith",
		"Eggs 4.29",
		"Subtotal: 4.29",
		"Tax: 0.30",
		"Savings: 1.00",
		"VISA ****1234",
		"Rewards #: RW-9911",
		"Total 4.59",
	}, "\n")

	receipt := fixedExtractor(t).Extract(text)

	assert.Equal(t, "A12345", receipt.AdvancedData[KeyReceiptID])
	assert.Equal(t, "Pat Smith", receipt.AdvancedData[KeyCashier])
	assert.Equal(t, "visa", receipt.AdvancedData[KeyPaymentMethod])
	assert.Equal(t, "0.30", receipt.AdvancedData[KeyTax])
	assert.Equal(t, "4.29", receipt.AdvancedData[KeySubtotal])
	assert.Equal(t, "1.00", receipt.AdvancedData[KeyDiscount])
	assert.Equal(t, "RW-9911", receipt.AdvancedData[KeyLoyaltyCode])
}

func TestExtractAdvancedDataOmitsMissingFields(t *testing.T) {
	receipt := fixedExtractor(t).Extract("Corner Deli\nCoffee 2.50\nTotal 2.50")

	_, hasCashier := receipt.AdvancedData[KeyCashier]
	assert.False(t, hasCashier)
	_, hasLoyalty := receipt.AdvancedData[KeyLoyaltyCode]
	assert.False(t, hasLoyalty)
}
