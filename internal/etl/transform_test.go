package etl_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"banks/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

func writeRates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exchange_rate.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write rates: %v", err)
	}
	return path
}

const fullRates = "Currency,Rate\nEUR,0.93\nGBP,0.8\nINR,82.95\nPKR,287.5\n"

func banksDataset(t *testing.T, caps ...any) *etl.Dataset {
	t.Helper()
	names := make([]any, len(caps))
	for i := range caps {
		names[i] = string(rune('A' + i))
	}
	ds := etl.NewDataset()
	if err := ds.AddColumn("Bank name", names); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddColumn(etl.MarketCapColumn, caps); err != nil {
		t.Fatal(err)
	}
	return ds
}

type recordLog struct{ lines []string }

func (r *recordLog) Log(msg string) { r.lines = append(r.lines, msg) }

func (r *recordLog) contains(sub string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────
// Round2 / LoadRates
// ─────────────────────────────────────────────────────────────

func TestRound2(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{80, 80},
		{342.0068, 342.01},
		{2.675, 2.67}, // 2.675 is stored as 2.67499999...
		{0.125, 0.12}, // exact tie rounds to even
		{-1.005, -1},
	}
	for _, c := range cases {
		if got := etl.Round2(c.in); got != c.want {
			t.Errorf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestLoadRates(t *testing.T) {
	rates, err := etl.LoadRates(writeRates(t, "\ufeffCurrency, Rate\nGBP, 0.8\n"))
	if err != nil {
		t.Fatalf("LoadRates: %v", err)
	}
	if rates["GBP"] != 0.8 {
		t.Errorf("GBP: got %v", rates["GBP"])
	}
}

func TestLoadRates_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.csv")
	if _, err := etl.LoadRates(missing); !errors.Is(err, etl.ErrResourceNotFound) {
		t.Errorf("missing file: got %v, want ErrResourceNotFound", err)
	}
	if _, err := etl.LoadRates(writeRates(t, "Currency,Value\nGBP,0.8\n")); !errors.Is(err, etl.ErrSchema) {
		t.Errorf("no Rate column: got %v, want ErrSchema", err)
	}
	if _, err := etl.LoadRates(writeRates(t, "Currency,Rate\nGBP,abc\n")); !errors.Is(err, etl.ErrSchema) {
		t.Errorf("bad rate: got %v, want ErrSchema", err)
	}
	if _, err := etl.LoadRates(writeRates(t, "")); !errors.Is(err, etl.ErrSchema) {
		t.Errorf("empty file: got %v, want ErrSchema", err)
	}
}

// ─────────────────────────────────────────────────────────────
// CurrencyTransform
// ─────────────────────────────────────────────────────────────

func TestCurrencyTransform_ThreeRows(t *testing.T) {
	ds := banksDataset(t, 100.0, 200.0, 300.0)
	log := &recordLog{}
	tr := &etl.CurrencyTransform{RatesPath: writeRates(t, fullRates), Log: log}

	out, err := tr.Transform(ds)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Width() != 6 {
		t.Fatalf("expected exactly four new columns, width=%d", out.Width())
	}

	names := out.Schema().FieldNames()
	for i, cur := range etl.DefaultCurrencies {
		if names[2+i] != etl.ConvertedColumn(cur) {
			t.Errorf("column %d: got %q, want %q", 2+i, names[2+i], etl.ConvertedColumn(cur))
		}
	}

	gbp, _ := out.Column("MC_GBP_Billion")
	want := []float64{80, 160, 240}
	for i, w := range want {
		if gbp.Values[i] != w {
			t.Errorf("GBP row %d: got %v, want %v", i, gbp.Values[i], w)
		}
	}
	inr, _ := out.Column("MC_INR_Billion")
	if inr.Values[0] != 8295.0 {
		t.Errorf("INR row 0: got %v", inr.Values[0])
	}
	if !log.contains("Data transformation complete") {
		t.Errorf("missing completion log, got %v", log.lines)
	}
}

func TestCurrencyTransform_IntegerMarketCap(t *testing.T) {
	ds := banksDataset(t, int64(100), int64(3))
	tr := &etl.CurrencyTransform{RatesPath: writeRates(t, fullRates)}
	out, err := tr.Transform(ds)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	eur, _ := out.Column("MC_EUR_Billion")
	if eur.Type != etl.FieldReal || eur.Values[0] != 93.0 || eur.Values[1] != 2.79 {
		t.Errorf("EUR: %+v", eur)
	}
}

func TestCurrencyTransform_MissingRate(t *testing.T) {
	for _, rows := range [][]any{{100.0, 200.0}, {}} {
		ds := banksDataset(t, rows...)
		log := &recordLog{}
		tr := &etl.CurrencyTransform{RatesPath: writeRates(t, "Currency,Rate\nEUR,0.93\nGBP,0.8\nINR,82.95\n"), Log: log}

		_, err := tr.Transform(ds)
		if !errors.Is(err, etl.ErrMissingRate) {
			t.Fatalf("%d rows: got %v, want ErrMissingRate", len(rows), err)
		}
		if !errors.Is(err, etl.ErrTransformation) {
			t.Errorf("%d rows: expected ErrTransformation wrapper", len(rows))
		}
		if ds.Width() != 2 {
			t.Errorf("%d rows: dataset modified on error, width=%d", len(rows), ds.Width())
		}
		if !log.contains("Exchange rate for PKR not found") {
			t.Errorf("%d rows: missing rate log, got %v", len(rows), log.lines)
		}
	}
}

func TestCurrencyTransform_SchemaErrors(t *testing.T) {
	rates := writeRates(t, fullRates)

	noCap := etl.NewDataset()
	if err := noCap.AddColumn("Bank name", []any{}); err != nil {
		t.Fatal(err)
	}
	if _, err := (&etl.CurrencyTransform{RatesPath: rates}).Transform(noCap); !errors.Is(err, etl.ErrSchema) {
		t.Errorf("missing column, zero rows: got %v, want ErrSchema", err)
	}

	text := banksDataset(t, "big", "small")
	if _, err := (&etl.CurrencyTransform{RatesPath: rates}).Transform(text); !errors.Is(err, etl.ErrSchema) {
		t.Errorf("text column: got %v, want ErrSchema", err)
	}

	if _, err := (&etl.CurrencyTransform{RatesPath: rates}).Transform(nil); !errors.Is(err, etl.ErrSchema) {
		t.Errorf("nil dataset: got %v, want ErrSchema", err)
	}

	twice := banksDataset(t, 1.0)
	tr := &etl.CurrencyTransform{RatesPath: rates}
	if _, err := tr.Transform(twice); err != nil {
		t.Fatalf("first Transform: %v", err)
	}
	if _, err := tr.Transform(twice); !errors.Is(err, etl.ErrSchema) {
		t.Errorf("re-transform: got %v, want ErrSchema", err)
	}
}

func TestCurrencyTransform_MissingRateFile(t *testing.T) {
	ds := banksDataset(t, 1.0)
	tr := &etl.CurrencyTransform{RatesPath: filepath.Join(t.TempDir(), "missing.csv")}
	if _, err := tr.Transform(ds); !errors.Is(err, etl.ErrResourceNotFound) {
		t.Errorf("got %v, want ErrResourceNotFound", err)
	}
}

func TestCurrencyTransform_ZeroRowsSucceeds(t *testing.T) {
	ds := banksDataset(t)
	out, err := (&etl.CurrencyTransform{RatesPath: writeRates(t, fullRates)}).Transform(ds)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Width() != 6 || out.Len() != 0 {
		t.Errorf("shape: got %dx%d", out.Len(), out.Width())
	}
}

func TestApplyTransformers_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	chain := []etl.Transformer{
		etl.TransformerFunc(func(ds *etl.Dataset) (*etl.Dataset, error) { calls++; return nil, boom }),
		etl.TransformerFunc(func(ds *etl.Dataset) (*etl.Dataset, error) { calls++; return ds, nil }),
	}
	if _, err := etl.ApplyTransformers(etl.NewDataset(), chain); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
