package db

import (
	"strings"
	"testing"
)

func TestSchemaStatements_Ordered(t *testing.T) {
	stmts, err := SchemaStatements()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("expected 2 schema files, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS patients") {
		t.Error("expected patients table first")
	}
	if !strings.Contains(stmts[1], "CREATE TABLE IF NOT EXISTS diagnoses") {
		t.Error("expected diagnoses table second")
	}
}

func TestSchemaStatements_ScoreChecks(t *testing.T) {
	stmts, err := SchemaStatements()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, col := range []string{"confidence", "normal_score", "benign_score", "opmd_score", "malignant_score"} {
		if !strings.Contains(stmts[1], col+" BETWEEN 0 AND 1") {
			t.Errorf("expected range check on %s", col)
		}
	}
}
