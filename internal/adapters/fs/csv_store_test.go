package fs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/lottery/internal/domain"
)

func bet(agency int, doc string, number int) domain.Bet {
	return domain.Bet{
		Agency:    agency,
		FirstName: "Ana",
		LastName:  "Diaz, Jr",
		Document:  doc,
		Birthdate: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Number:    number,
	}
}

func TestCSVStore_AppendAndWinners(t *testing.T) {
	ctx := context.Background()
	store := NewCSVStore(t.TempDir(), 7574)

	if err := store.Append(ctx, []domain.Bet{bet(1, "111", 7574), bet(2, "222", 7574)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, []domain.Bet{bet(1, "333", 1), bet(1, "444", 7574)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.WinnersForAgency(ctx, 1)
	if err != nil {
		t.Fatalf("WinnersForAgency() error = %v", err)
	}
	if strings.Join(got, ",") != "111,444" {
		t.Errorf("WinnersForAgency(1) = %v, want [111 444]", got)
	}

	got, err = store.WinnersForAgency(ctx, 3)
	if err != nil {
		t.Fatalf("WinnersForAgency() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("WinnersForAgency(3) = %v, want empty", got)
	}
}

func TestCSVStore_MissingFile(t *testing.T) {
	store := NewCSVStore(t.TempDir(), 7574)

	got, err := store.WinnersForAgency(context.Background(), 1)
	if err != nil {
		t.Fatalf("WinnersForAgency() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("WinnersForAgency() = %#v, want empty non-nil slice", got)
	}
}

func TestCSVStore_EmptyAppendCreatesNothing(t *testing.T) {
	store := NewCSVStore(t.TempDir(), 7574)

	if err := store.Append(context.Background(), nil); err != nil {
		t.Fatalf("Append(nil) error = %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("expected no file, stat error = %v", err)
	}
}

func TestCSVStore_CorruptFile(t *testing.T) {
	store := NewCSVStore(t.TempDir(), 7574)
	if err := os.WriteFile(store.Path(), []byte("x,a,b,c,1990-01-01,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := store.WinnersForAgency(context.Background(), 1); err == nil {
		t.Fatal("expected error for corrupt agency field")
	}
}

func TestCSVStore_WinnersRepeatable(t *testing.T) {
	ctx := context.Background()
	store := NewCSVStore(t.TempDir(), 7574)
	if err := store.Append(ctx, []domain.Bet{bet(1, "111", 7574), bet(1, "222", 3), bet(1, "333", 7574)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	tests := []struct {
		name   string
		agency int
	}{
		{"agency with winners", 1},
		{"agency without bets", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := store.WinnersForAgency(ctx, tt.agency)
			if err != nil {
				t.Fatalf("WinnersForAgency() error = %v", err)
			}
			second, err := store.WinnersForAgency(ctx, tt.agency)
			if err != nil {
				t.Fatalf("WinnersForAgency() error = %v", err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("WinnersForAgency(%d) changed between calls: %v then %v", tt.agency, first, second)
			}
		})
	}
}

func TestCSVStore_FailedWriteLeavesNoPartialBatch(t *testing.T) {
	ctx := context.Background()
	store := NewCSVStore(t.TempDir(), 7574)
	if err := store.Append(ctx, []domain.Bet{bet(1, "111", 7574)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	before, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}

	errDiskFull := errors.New("no space left on device")
	orig := writeFile
	writeFile = func(f *os.File, p []byte) (int, error) {
		n, err := f.Write(p[:len(p)/2])
		if err != nil {
			return n, err
		}
		return n, errDiskFull
	}
	t.Cleanup(func() { writeFile = orig })

	batch := make([]domain.Bet, 0, 200)
	for i := 0; i < 200; i++ {
		batch = append(batch, bet(1, fmt.Sprintf("doc-%d", i), 7574))
	}
	if err := store.Append(ctx, batch); !errors.Is(err, errDiskFull) {
		t.Fatalf("Append() error = %v, want %v", err, errDiskFull)
	}

	after, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Errorf("file changed after failed Append: got %d bytes, want %d", len(after), len(before))
	}

	got, err := store.WinnersForAgency(ctx, 1)
	if err != nil {
		t.Fatalf("WinnersForAgency() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"111"}) {
		t.Errorf("WinnersForAgency(1) = %v, want [111]", got)
	}
}
