package migrations

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrationsValid(t *testing.T) {
	if err := Validate(FS()); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}

	up, err := fs.ReadFile(FS(), "001_create_data_processing_metadata.up.sql")
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	for _, col := range []string{"file_name", "sheet_name", "row_count", "last_processed_time"} {
		if !strings.Contains(string(up), col) {
			t.Errorf("up migration missing column %s", col)
		}
	}
}

func TestValidate(t *testing.T) {
	sql := &fstest.MapFile{Data: []byte("SELECT 1;")}

	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{
			name:  "complete pair",
			files: fstest.MapFS{"001_a.up.sql": sql, "001_a.down.sql": sql},
		},
		{
			name:    "empty",
			files:   fstest.MapFS{},
			wantErr: "no migrations",
		},
		{
			name:    "bad name",
			files:   fstest.MapFS{"1_a.up.sql": sql},
			wantErr: "invalid migration filename",
		},
		{
			name:    "missing down",
			files:   fstest.MapFS{"001_a.up.sql": sql},
			wantErr: "missing its up or down",
		},
		{
			name: "gap",
			files: fstest.MapFS{
				"001_a.up.sql": sql, "001_a.down.sql": sql,
				"003_c.up.sql": sql, "003_c.down.sql": sql,
			},
			wantErr: "sequence gap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.files)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
