package domain

import (
	"testing"
	"time"
)

func TestBet_Wins(t *testing.T) {
	b := Bet{Number: DefaultWinningNumber}
	if !b.Wins(DefaultWinningNumber) {
		t.Error("Wins() = false for the drawn number")
	}
	if b.Wins(1) {
		t.Error("Wins() = true for a different number")
	}
}

func TestBetRecord_ToBet(t *testing.T) {
	in := Bet{
		Agency:    3,
		FirstName: "Ana",
		LastName:  "Diaz",
		Document:  "30904465",
		Birthdate: time.Date(1999, 3, 17, 0, 0, 0, 0, time.UTC),
		Number:    7574,
	}

	rec := in.ToRecord()
	if rec.Birthdate != "1999-03-17" {
		t.Fatalf("Birthdate = %q, want 1999-03-17", rec.Birthdate)
	}

	out, err := rec.ToBet()
	if err != nil {
		t.Fatalf("ToBet() error = %v", err)
	}
	if out != in {
		t.Errorf("ToBet() = %+v, want %+v", out, in)
	}
}

func TestBetRecord_ToBet_InvalidDate(t *testing.T) {
	_, err := BetRecord{Birthdate: "1999-13-40"}.ToBet()
	if err == nil {
		t.Fatal("expected error for invalid birthdate")
	}
}

func TestBatch_Agencies(t *testing.T) {
	b := Batch{
		Declared: 3,
		Bets:     []Bet{{Agency: 2}, {Agency: 1}, {Agency: 2}},
	}
	if !b.Complete() {
		t.Error("Complete() = false, want true")
	}
	got := b.Agencies()
	if len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("Agencies() = %v, want [2 1]", got)
	}
}
