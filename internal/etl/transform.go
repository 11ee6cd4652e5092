package etl

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify a dataset between source and destinations.
// They are composable: each takes the dataset and returns it (usually the
// same value, mutated in place) or an error that halts the chain.

// Transformer processes a whole dataset.
type Transformer interface {
	Transform(*Dataset) (*Dataset, error)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(*Dataset) (*Dataset, error)

func (f TransformerFunc) Transform(ds *Dataset) (*Dataset, error) { return f(ds) }

// ApplyTransformers runs a chain of transformers, stopping at the first error.
func ApplyTransformers(ds *Dataset, ts []Transformer) (*Dataset, error) {
	for _, t := range ts {
		var err error
		ds, err = t.Transform(ds)
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// ── Currency conversion ────────────────────────────────────

// MarketCapColumn holds market capitalization in billions of US dollars.
const MarketCapColumn = "Market cap (US$ billion)"

// RateColumn is the multiplier column of the exchange-rate file.
const RateColumn = "Rate"

// DefaultCurrencies lists the target currencies in output column order.
var DefaultCurrencies = []string{"GBP", "EUR", "INR", "PKR"}

// RateTable maps a currency code to its multiplier against USD.
type RateTable map[string]float64

// ConvertedColumn names the derived column for currency.
func ConvertedColumn(currency string) string {
	return "MC_" + currency + "_Billion"
}

// Round2 rounds v to two decimals using the correctly-rounded decimal
// expansion of v, which ties to even exactly like IEEE-754 round-to-nearest.
func Round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

// LoadRates reads a CSV whose first column is the currency code and which
// has a "Rate" column.
func LoadRates(path string) (RateTable, error) {
	header, rows, err := ReadCSVFile(path, 0)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) || path == "" {
			return nil, NewError(StageTransform, ErrResourceNotFound, err, "exchange rate file %q not found", path)
		}
		return nil, NewError(StageTransform, ErrSchema, err, "exchange rate file %q is not valid csv", path)
	}

	rateIdx := -1
	for i, h := range header {
		if i > 0 && strings.TrimSpace(h) == RateColumn {
			rateIdx = i
			break
		}
	}
	if rateIdx < 0 {
		return nil, NewError(StageTransform, ErrSchema, nil, "the exchange rate file is missing the required %q column", RateColumn)
	}

	rates := make(RateTable, len(rows))
	for n, row := range rows {
		if len(row) <= rateIdx {
			return nil, NewError(StageTransform, ErrSchema, nil, "exchange rate row %d has no %q value", n+1, RateColumn)
		}
		code := strings.TrimSpace(row[0])
		rate, err := strconv.ParseFloat(strings.TrimSpace(row[rateIdx]), 64)
		if err != nil {
			return nil, NewError(StageTransform, ErrSchema, err, "invalid rate for %q", code)
		}
		rates[code] = rate
	}
	return rates, nil
}

// CurrencyTransform appends one MC_<CUR>_Billion column per currency,
// computed as round(market cap * rate, 2).
type CurrencyTransform struct {
	RatesPath  string
	Currencies []string // default DefaultCurrencies
	Log        Logger
}

// Transform mutates ds in place and returns it. On error ds is unchanged.
func (t *CurrencyTransform) Transform(ds *Dataset) (*Dataset, error) {
	log := orNop(t.Log)

	out, err := t.transform(ds)
	if err != nil {
		log.Log(fmt.Sprintf("Data transformation failed: %v", err))
		return nil, &Error{Stage: StageTransform, Kind: ErrTransformation, Msg: "an error occurred during data transformation", Err: err}
	}

	log.Log("Data transformation complete. Initiating Loading process.")
	return out, nil
}

func (t *CurrencyTransform) transform(ds *Dataset) (*Dataset, error) {
	log := orNop(t.Log)

	if ds == nil {
		return nil, NewError(StageTransform, ErrSchema, nil, "the input dataset is nil")
	}
	src, ok := ds.Column(MarketCapColumn)
	if !ok {
		return nil, NewError(StageTransform, ErrSchema, nil, "the input dataset is missing the %q column", MarketCapColumn)
	}
	if src.Type == FieldText && ds.Len() > 0 && !allNil(src.Values) {
		return nil, NewError(StageTransform, ErrSchema, nil, "column %q is not numeric", MarketCapColumn)
	}

	rates, err := LoadRates(t.RatesPath)
	if err != nil {
		switch {
		case errors.Is(err, ErrResourceNotFound):
			log.Log(fmt.Sprintf("Exchange rate file not found: %s", t.RatesPath))
		case errors.Is(err, ErrSchema):
			log.Log(fmt.Sprintf("The exchange rate file is invalid: %v", err))
		}
		return nil, err
	}

	currencies := t.Currencies
	if len(currencies) == 0 {
		currencies = DefaultCurrencies
	}

	for _, cur := range currencies {
		if _, ok := rates[cur]; !ok {
			log.Log(fmt.Sprintf("Exchange rate for %s not found in the CSV file.", cur))
			return nil, NewError(StageTransform, ErrMissingRate, nil, "exchange rate for %s is missing in the exchange rate file", cur)
		}
		if _, exists := ds.Column(ConvertedColumn(cur)); exists {
			return nil, NewError(StageTransform, ErrSchema, nil, "column %q already exists", ConvertedColumn(cur))
		}
	}

	for _, cur := range currencies {
		rate := rates[cur]
		values := make([]any, len(src.Values))
		for i, v := range src.Values {
			switch n := v.(type) {
			case int64:
				values[i] = Round2(float64(n) * rate)
			case float64:
				values[i] = Round2(n * rate)
			}
		}
		if err := ds.AddColumn(ConvertedColumn(cur), values); err != nil {
			return nil, NewError(StageTransform, ErrUnexpected, err, "append %s column", cur)
		}
	}
	return ds, nil
}

func allNil(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}
