package routing

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func TestSetInstanceOption_CoercesBuiltinBool(t *testing.T) {
	v, err := SetInstanceOption("_hidden", "ON")
	if err != nil {
		t.Fatalf("SetInstanceOption: %v", err)
	}
	if v != true {
		t.Errorf("value = %v, want true", v)
	}
}

func TestSetInstanceOption_RejectsInvalidBoolSpelling(t *testing.T) {
	_, err := SetInstanceOption("_hidden", "maybe")
	if err == nil {
		t.Fatal("expected error for unrecognized boolean spelling")
	}
}

func TestSetInstanceOption_PassesThroughUnknownTag(t *testing.T) {
	v, err := SetInstanceOption("custom_tag", 42)
	if err != nil {
		t.Fatalf("SetInstanceOption: %v", err)
	}
	if v != 42 {
		t.Errorf("value = %v, want 42", v)
	}
}

func TestSetInstanceOption_RejectsWrongTypeForBuiltinString(t *testing.T) {
	_, err := SetInstanceOption("label", 7)
	if err == nil {
		t.Fatal("expected error for non-string label value")
	}
}

func TestGetRoutingGuideline_FallsBackToActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := metadata.New(mysqlsess.NewSessionForTesting(db))
	m := New(store)

	rows := sqlmock.NewRows([]string{"guideline_id", "cluster_set_id", "name", "document", "version", "active", "created_at"}).
		AddRow(1, 1, "default", "{}", 1, true, mockTime())
	mock.ExpectQuery("SELECT guideline_id, cluster_set_id, name, document, version, active, created_at").
		WithArgs(int64(1)).WillReturnRows(rows)

	g, err := m.GetRoutingGuideline(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("GetRoutingGuideline: %v", err)
	}
	if g.Name != "default" {
		t.Errorf("Name = %q, want default", g.Name)
	}
}

func mockTime() any {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestRemoveRoutingGuideline_RefusesWhenActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := metadata.New(mysqlsess.NewSessionForTesting(db))
	m := New(store)

	rows := sqlmock.NewRows([]string{"guideline_id", "cluster_set_id", "name", "document", "version", "active", "created_at"}).
		AddRow(1, 1, "prod", "{}", 1, true, mockTime())
	mock.ExpectQuery("SELECT guideline_id, cluster_set_id, name, document, version, active, created_at").
		WithArgs(int64(1)).WillReturnRows(rows)

	err = m.RemoveRoutingGuideline(context.Background(), 1, "prod")
	if err == nil {
		t.Fatal("expected error removing an active routing guideline")
	}
}

func TestRemoveRoutingGuideline_AllowsWhenInactive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := metadata.New(mysqlsess.NewSessionForTesting(db))
	m := New(store)

	rows := sqlmock.NewRows([]string{"guideline_id", "cluster_set_id", "name", "document", "version", "active", "created_at"}).
		AddRow(1, 1, "staging", "{}", 1, false, mockTime())
	mock.ExpectQuery("SELECT guideline_id, cluster_set_id, name, document, version, active, created_at").
		WithArgs(int64(1)).WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := m.RemoveRoutingGuideline(context.Background(), 1, "staging"); err != nil {
		t.Fatalf("RemoveRoutingGuideline: %v", err)
	}
}

func TestSetRoutingOption_RejectsUnsupportedGuidelineVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := metadata.New(mysqlsess.NewSessionForTesting(db))
	m := New(store)

	guidelineRows := sqlmock.NewRows([]string{"guideline_id", "cluster_set_id", "name", "document", "version", "active", "created_at"}).
		AddRow(1, 1, "v2guideline", "{}", 2, true, mockTime())
	mock.ExpectQuery("SELECT guideline_id, cluster_set_id, name, document, version, active, created_at").
		WithArgs(int64(1)).WillReturnRows(guidelineRows)

	routerRows := sqlmock.NewRows([]string{"router_id", "cluster_set_id", "cluster_id", "name", "address", "last_check_in", "version", "supported_guideline_version"}).
		AddRow(1, 1, nil, "router1", "10.0.0.1:6446", mockTime(), "8.0.34", 1)
	mock.ExpectQuery("SELECT router_id, cluster_set_id, cluster_id, name, address, last_check_in, version, supported_guideline_version").
		WithArgs(int64(1)).WillReturnRows(routerRows)

	clusterSetID := int64(1)
	opts := &metadata.RoutingOptions{ClusterSetID: &clusterSetID}
	err = m.SetRoutingOption(context.Background(), opts, "routing_guideline", "v2guideline")
	if err == nil {
		t.Fatal("expected error activating a guideline newer than a router's supported version")
	}
}

func TestSetRoutingOption_AllowsCompatibleGuidelineVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := metadata.New(mysqlsess.NewSessionForTesting(db))
	m := New(store)

	guidelineRows := sqlmock.NewRows([]string{"guideline_id", "cluster_set_id", "name", "document", "version", "active", "created_at"}).
		AddRow(1, 1, "v1guideline", "{}", 1, true, mockTime())
	mock.ExpectQuery("SELECT guideline_id, cluster_set_id, name, document, version, active, created_at").
		WithArgs(int64(1)).WillReturnRows(guidelineRows)

	routerRows := sqlmock.NewRows([]string{"router_id", "cluster_set_id", "cluster_id", "name", "address", "last_check_in", "version", "supported_guideline_version"}).
		AddRow(1, 1, nil, "router1", "10.0.0.1:6446", mockTime(), "8.0.34", 2)
	mock.ExpectQuery("SELECT router_id, cluster_set_id, cluster_id, name, address, last_check_in, version, supported_guideline_version").
		WithArgs(int64(1)).WillReturnRows(routerRows)

	clusterSetID := int64(1)
	opts := &metadata.RoutingOptions{ClusterSetID: &clusterSetID}
	if err := m.SetRoutingOption(context.Background(), opts, "routing_guideline", "v1guideline"); err != nil {
		t.Fatalf("SetRoutingOption: %v", err)
	}
}
