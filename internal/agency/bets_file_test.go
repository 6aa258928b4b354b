package agency

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadBets(t *testing.T) {
	input := strings.Join([]string{
		"Santiago Lionel,Lorca,30904465,1999-03-17,7574",
		"Ana,Diaz,11111111,1990-05-17,12",
		`"Bad, Name",Perez,22222222,1990-01-01,1`,
		"Only,Four,Fields,1990-01-01",
		"Juan,Gomez,33333333,17/03/1999,1",
		"Eva,Ruiz,44444444,1990-01-01,-3",
		"Key=Val,Ruiz,55555555,1990-01-01,3",
		"Luz,Sol,66666666,1990-01-01,42",
	}, "\n")

	bets, skipped, err := ReadBets(strings.NewReader(input), 3)
	if err != nil {
		t.Fatalf("ReadBets() error = %v", err)
	}
	if len(bets) != 3 {
		t.Fatalf("got %d bets, want 3", len(bets))
	}
	if bets[0].FirstName != "Santiago Lionel" || bets[0].Agency != 3 || bets[0].Number != 7574 {
		t.Errorf("unexpected first bet %+v", bets[0])
	}
	if bets[2].Document != "66666666" {
		t.Errorf("last bet document = %s", bets[2].Document)
	}

	if len(skipped) != 5 {
		t.Fatalf("skipped %d rows, want 5: %+v", len(skipped), skipped)
	}
	if skipped[0].Line != 3 {
		t.Errorf("first skipped line = %d, want 3", skipped[0].Line)
	}
}

func TestReadBetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency-1.csv")
	if err := os.WriteFile(path, []byte("Ana,Diaz,1,1990-05-17,7574\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	bets, skipped, err := ReadBetsFile(path, 1)
	if err != nil {
		t.Fatalf("ReadBetsFile() error = %v", err)
	}
	if len(bets) != 1 || len(skipped) != 0 {
		t.Errorf("bets = %d, skipped = %d", len(bets), len(skipped))
	}

	if _, _, err := ReadBetsFile(filepath.Join(t.TempDir(), "missing.csv"), 1); err == nil {
		t.Error("expected error for missing file")
	}
}
