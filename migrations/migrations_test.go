package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedSchema(t *testing.T) {
	files, err := fs.Glob(FS, "*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations embedded")
	}

	sql, err := fs.ReadFile(FS, files[0])
	if err != nil {
		t.Fatalf("read %s: %v", files[0], err)
	}
	for _, table := range []string{"payments", "escrows", "escrow_events", "escrow_series", "webhook_delivery_logs", "escrow_receipts"} {
		if !strings.Contains(string(sql), "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("%s does not create %s", files[0], table)
		}
	}
}
