package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReceiptsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_receipts_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no receipts migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS receipts",
		"REFERENCES orders(id) ON DELETE RESTRICT",
		"CONSTRAINT uq_receipts_store_receipt_number UNIQUE (store_id, receipt_number)",
		"CONSTRAINT uq_receipts_transaction_id UNIQUE (transaction_id)",
		"DROP TABLE IF EXISTS receipts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestJobLogsMigrationContainsClaimNextIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_job_logs_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no job_logs migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS job_logs",
		"queue_name_enum NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_job_logs_claim_next ON job_logs (queue_name, status, run_after, priority, queued_at)",
		"DROP TABLE IF EXISTS job_logs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEnumsMigrationDefinesEveryEnumType(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_enums.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no enum migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	enumTypes := []string{
		"order_status_enum",
		"payment_transaction_status_enum",
		"receipt_status_enum",
		"webhook_outcome_enum",
		"queue_name_enum",
		"job_status_enum",
		"currency_enum",
		"email_status_enum",
		"cloud_storage_status_enum",
	}

	for _, name := range enumTypes {
		if !strings.Contains(content, "CREATE TYPE IF NOT EXISTS "+name) {
			t.Errorf("missing CREATE TYPE for %q", name)
		}
		if !strings.Contains(content, "DROP TYPE IF EXISTS "+name) {
			t.Errorf("missing DROP TYPE for %q", name)
		}
	}
}
