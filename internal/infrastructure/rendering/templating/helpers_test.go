package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpperLowerHelpers(t *testing.T) {
	assert.Equal(t, "ACME LTD", upperHelper("Acme Ltd"))
	assert.Equal(t, "", upperHelper(""))
	assert.Equal(t, "acme ltd", lowerHelper("ACME Ltd"))
}

func TestFormatDateHelper_DefaultsToDayToken(t *testing.T) {
	assert.Equal(t, "15", formatDateHelper("2024-03-15T00:00:00Z", ""))
}

func TestFormatDateHelper_CustomTokens(t *testing.T) {
	v := "2024-03-05T09:07:02Z"
	assert.Equal(t, "2024-03-05", formatDateHelper(v, "yyyy-MM-dd"))
	assert.Equal(t, "09:07:02", formatDateHelper(v, "HH:mm:ss"))
	assert.Equal(t, "March", formatDateHelper(v, "MMMM"))
	assert.Equal(t, "Mar", formatDateHelper(v, "MMM"))
}

func TestFormatDateHelper_UnparseableInputIsEmpty(t *testing.T) {
	assert.Equal(t, "", formatDateHelper("not-a-date", "yyyy"))
}

func TestCurrencyHelper_EnGB(t *testing.T) {
	assert.Equal(t, "£9.99", currencyHelper("9.99", "en-GB"))
}

func TestCurrencyHelper_DefaultsWhenCultureUnknown(t *testing.T) {
	assert.Equal(t, "£9.99", currencyHelper("9.99", "xx-XX"))
	assert.Equal(t, "£9.99", currencyHelper("9.99", ""))
}

func TestCurrencyHelper_LenientCaseInsensitive(t *testing.T) {
	assert.Equal(t, "$1,234.50", currencyHelper("1234.5", "EN-US"))
}

func TestCurrencyHelper_ThousandsGrouping(t *testing.T) {
	assert.Equal(t, "£1,234,567.00", currencyHelper("1234567", "en-gb"))
}

func TestCurrencyHelper_Negative(t *testing.T) {
	assert.Equal(t, "-£9.99", currencyHelper("-9.99", "en-gb"))
}

func TestCurrencyHelper_UnparseableIsEmpty(t *testing.T) {
	assert.Equal(t, "", currencyHelper("not-a-number", "en-gb"))
}
