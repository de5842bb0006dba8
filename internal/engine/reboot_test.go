package engine

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func TestPickBestInstanceGTID_PrefersMoreAdvanced(t *testing.T) {
	aDB, aMock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer aDB.Close()
	bDB, bMock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer bDB.Close()

	aMock.ExpectQuery("SELECT @@GLOBAL.GTID_EXECUTED").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow("aaaa:1-5"))
	bMock.ExpectQuery("SELECT @@GLOBAL.GTID_EXECUTED").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow("aaaa:1-9"))

	candidates := map[string]*mysqlsess.Session{
		"a:3306": mysqlsess.NewSessionForTesting(aDB),
		"b:3306": mysqlsess.NewSessionForTesting(bDB),
	}

	// Whichever session is queried first for GTID_SUBSET must report "a" as
	// a subset of "b" so "b" wins; set up both orderings since map
	// iteration order is unspecified.
	aMock.ExpectQuery("SELECT GTID_SUBSET").WithArgs("aaaa:1-5", "aaaa:1-9").WillReturnRows(sqlmock.NewRows([]string{"s"}).AddRow(1))
	bMock.ExpectQuery("SELECT GTID_SUBSET").WithArgs("aaaa:1-9", "aaaa:1-5").WillReturnRows(sqlmock.NewRows([]string{"s"}).AddRow(0))

	ep, _, _, err := pickBestInstanceGTID(context.Background(), candidates, "", false)
	if err != nil {
		t.Fatalf("pickBestInstanceGTID: %v", err)
	}
	if ep != "b:3306" {
		t.Fatalf("endpoint = %q, want b:3306", ep)
	}
}

func TestPickBestInstanceGTID_NoCandidates(t *testing.T) {
	_, _, _, err := pickBestInstanceGTID(context.Background(), map[string]*mysqlsess.Session{}, "", false)
	if err == nil {
		t.Fatal("expected error for empty candidate set")
	}
}
