package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Moedas cuja menor unidade já é a unidade inteira (¥500 exibe "500", não "5.00").
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// FormatAmount converte um valor na menor unidade da moeda para string de
// exibição em logs. Nenhuma aritmética monetária parte deste resultado.
func FormatAmount(amount int64, currency string) string {
	code := strings.ToUpper(currency)
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount).String() + " " + code
	}
	return decimal.NewFromInt(amount).Shift(-2).StringFixed(2) + " " + code
}
