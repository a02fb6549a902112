package models

// The bank speaks ISO numeric currency codes, zero-padded to four digits,
// while the application uses alpha codes. The mapping is a fixed external
// contract. Unsupported codes pass through unmapped; the bank rejects them
// with its own message, which is more diagnosable than a local crash.
var currencyToNumeric = map[string]string{
	"TRY": "0949",
	"USD": "0840",
	"EUR": "0978",
}

var numericToCurrency = map[string]string{
	"0949": "TRY",
	"0840": "USD",
	"0978": "EUR",
}

// NumericCurrency maps an application alpha code to the bank numeric code.
func NumericCurrency(alpha string) string {
	if code, ok := currencyToNumeric[alpha]; ok {
		return code
	}
	return alpha
}

// AlphaCurrency maps a bank numeric code back to the application alpha code.
func AlphaCurrency(numeric string) string {
	if alpha, ok := numericToCurrency[numeric]; ok {
		return alpha
	}
	return numeric
}
