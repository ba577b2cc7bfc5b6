package statement

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

const genericStatement = `Kontoauszug März 2024
Konto: DE89 3704 0044 0532 0130 00

01.03.2024  KARTENZAHLUNG REWE SAGT DANKE  -49,99
03.03.2024 04.03.2024 MIETE MAERZ WOHNUNG 12 -850,00
15.03.2024  GEHALT ACME GMBH  +2.100,00

Seite 1 von 1`

func TestGenericParse(t *testing.T) {
	p := NewGenericParser()

	txs, warnings, err := p.Parse(genericStatement)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}

	first := txs[0]
	if first.ID != "txn-1" {
		t.Errorf("ID = %q, want txn-1", first.ID)
	}
	if first.Description != "KARTENZAHLUNG REWE SAGT DANKE" {
		t.Errorf("Description = %q", first.Description)
	}
	if first.Type != domain.TypeExpense {
		t.Errorf("Type = %q, want EXPENSE", first.Type)
	}
	if !first.Amount.Equal(decimal.RequireFromString("49.99")) {
		t.Errorf("Amount = %s, want 49.99 (positive, sign carried by type)", first.Amount)
	}
	if !first.IsSelected {
		t.Error("IsSelected should default to true")
	}

	second := txs[1]
	if second.BookingDate == nil || !second.BookingDate.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("second transaction booking date = %v, want 2024-03-04", second.BookingDate)
	}

	third := txs[2]
	if third.Type != domain.TypeIncome {
		t.Errorf("credit line Type = %q, want INCOME", third.Type)
	}
	if !third.Amount.Equal(decimal.RequireFromString("2100")) {
		t.Errorf("credit Amount = %s, want 2100", third.Amount)
	}
}

func TestGenericParseDeterministic(t *testing.T) {
	p := NewGenericParser()

	first, _, err := p.Parse(genericStatement)
	if err != nil {
		t.Fatalf("first Parse failed: %v", err)
	}
	second, _, err := p.Parse(genericStatement)
	if err != nil {
		t.Fatalf("second Parse failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Parse is not deterministic: two runs over identical input differ")
	}
}

func TestGenericParseMalformedLineIsWarning(t *testing.T) {
	// Three transaction-shaped lines, one with a broken amount.
	text := `01.03.2024 REWE SAGT DANKE -49,99
02.03.2024 BROKEN LINE WITHOUT AMOUNT
03.03.2024 GEHALT +2.100,00`

	p := NewGenericParser()
	txs, warnings, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("got %d transactions, want 2", len(txs))
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if warnings[0].Line != 2 {
		t.Errorf("warning line = %d, want 2", warnings[0].Line)
	}
}

func TestGenericParseOrderIsStatementOrder(t *testing.T) {
	// Dates out of chronological order stay in statement order.
	text := `15.03.2024 LATE ENTRY -10,00
01.03.2024 EARLY ENTRY -20,00`

	p := NewGenericParser()
	txs, _, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].Description != "LATE ENTRY" || txs[1].Description != "EARLY ENTRY" {
		t.Errorf("output re-sorted: %q, %q", txs[0].Description, txs[1].Description)
	}
}

func TestDeutscheBankParse(t *testing.T) {
	text := `Buchungstag Wert        Verwendungszweck
01.03.2024  02.03.2024  KARTENZAHLUNG REWE SAGT DANKE             -49,99
05.03.2024  05.03.2024  SEPA-GUTSCHRIFT ACME GMBH GEHALT        2.100,00`

	p := NewDeutscheBankParser()
	txs, warnings, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	first := txs[0]
	if !first.TransactionDate.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("TransactionDate = %v, want value date 2024-03-02", first.TransactionDate)
	}
	if first.BookingDate == nil || !first.BookingDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("BookingDate = %v, want 2024-03-01", first.BookingDate)
	}
	if first.Type != domain.TypeExpense || !first.Amount.Equal(decimal.RequireFromString("49.99")) {
		t.Errorf("first = %s %s, want EXPENSE 49.99", first.Type, first.Amount)
	}
	if txs[1].Type != domain.TypeIncome {
		t.Errorf("credit row Type = %q, want INCOME", txs[1].Type)
	}
}

func TestSparkasseParse(t *testing.T) {
	text := `Buchungstag;Valuta;Buchungstext;Verwendungszweck;Referenz;Betrag;Waehrung
01.03.2024;02.03.2024;KARTENZAHLUNG;REWE SAGT DANKE//KOELN;REF1234;-49,99;EUR
05.03.2024;05.03.2024;LASTSCHRIFT;STROMWERKE ABSCHLAG 03-2024;REF9876;-88,50;EUR
10.03.2024;10.03.2024;GUTSCHR. UEBERWEISUNG;ACME GMBH GEHALT MAERZ;REF0001;2.100,00;EUR`

	p := NewSparkasseParser()
	txs, warnings, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}

	first := txs[0]
	if first.MerchantName != "REWE SAGT DANKE" {
		t.Errorf("MerchantName = %q, want counterparty before //", first.MerchantName)
	}
	if first.ReferenceNumber != "REF1234" {
		t.Errorf("ReferenceNumber = %q", first.ReferenceNumber)
	}
	if first.PaymentMethod != "card" {
		t.Errorf("PaymentMethod = %q, want card", first.PaymentMethod)
	}
	if txs[1].PaymentMethod != "direct_debit" {
		t.Errorf("second PaymentMethod = %q, want direct_debit", txs[1].PaymentMethod)
	}
	if txs[2].Type != domain.TypeIncome || !txs[2].Amount.Equal(decimal.RequireFromString("2100")) {
		t.Errorf("credit row = %s %s, want INCOME 2100", txs[2].Type, txs[2].Amount)
	}
}

func TestSparkasseMalformedRow(t *testing.T) {
	text := `01.03.2024;02.03.2024;KARTENZAHLUNG;REWE SAGT DANKE;REF;-49,99
02.03.2024;bad-date;LASTSCHRIFT;MIETE;REF;-850,00`

	p := NewSparkasseParser()
	txs, warnings, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(txs) != 1 || len(warnings) != 1 {
		t.Errorf("got %d transactions and %d warnings, want 1 and 1", len(txs), len(warnings))
	}
}

func TestN26Parse(t *testing.T) {
	text := `Your statement for March 2024

01.03.2024 REWE SAGT DANKE Mastercard Payment -49,99€
05.03.2024 ACME GMBH Incoming Transfer +2.100,00€
08.03.2024 STADTWERKE Direct Debit -88,50€`

	p := NewN26Parser()
	txs, warnings, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}

	first := txs[0]
	if first.MerchantName != "REWE SAGT DANKE" {
		t.Errorf("MerchantName = %q", first.MerchantName)
	}
	if first.PaymentMethod != "card" {
		t.Errorf("PaymentMethod = %q, want card", first.PaymentMethod)
	}
	if first.Type != domain.TypeExpense || !first.Amount.Equal(decimal.RequireFromString("49.99")) {
		t.Errorf("first = %s %s, want EXPENSE 49.99", first.Type, first.Amount)
	}
}

func TestN26UnmatchedCandidateLineWarns(t *testing.T) {
	text := `01.03.2024 SOMETHING WITHOUT A KIND -49,99€`

	p := NewN26Parser()
	txs, warnings, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(txs) != 0 || len(warnings) != 1 {
		t.Errorf("got %d transactions and %d warnings, want 0 and 1", len(txs), len(warnings))
	}
}
