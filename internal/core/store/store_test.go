package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		want    string
		wantErr bool
	}{
		{
			name: "turso url gets auth token",
			cfg:  config.StoreConfig{URL: "libsql://agency.turso.io", AuthToken: "token123"},
			want: "libsql://agency.turso.io?authToken=token123",
		},
		{
			name: "existing query is preserved",
			cfg:  config.StoreConfig{URL: "libsql://agency.turso.io?foo=bar", AuthToken: "token123"},
			want: "libsql://agency.turso.io?authToken=token123&foo=bar",
		},
		{
			name: "explicit token in url wins",
			cfg:  config.StoreConfig{URL: "libsql://agency.turso.io?authToken=mine", AuthToken: "other"},
			want: "libsql://agency.turso.io?authToken=mine",
		},
		{
			name: "file dsn is kept",
			cfg:  config.StoreConfig{Path: "file:" + dir + "/adpilot.db"},
			want: "file:" + dir + "/adpilot.db",
		},
		{
			name: "bare path becomes file dsn",
			cfg:  config.StoreConfig{Path: filepath.Join(dir, "nested", "adpilot.db")},
			want: "file:" + filepath.Join(dir, "nested", "adpilot.db"),
		},
		{
			name: "memory",
			cfg:  config.StoreConfig{Path: ":memory:"},
			want: ":memory:",
		},
		{
			name:    "missing path",
			cfg:     config.StoreConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildLibsqlDSN(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, dsn)
			require.Equal(t, len(tt.want) > 5 && tt.want[:5] == "file:", isLocalDSN(dsn))
		})
	}
}

func TestBuildLibsqlDSNCreatesStoreDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "adpilot.db")

	_, err := buildLibsqlDSN(config.StoreConfig{Path: path})
	require.NoError(t, err)
	require.DirExists(t, filepath.Dir(path))
}
