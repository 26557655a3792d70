package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := NewStaticGameCatalog(DefaultGames())

	prefix, ok := catalog.Prefix("PUBG MOBILE")
	require.True(t, ok)
	require.Equal(t, "PBGM", prefix)

	require.True(t, catalog.Valid("LAST ISLAND OF SURVIVAL"))
	require.False(t, catalog.Valid("TETRIS"))
	require.False(t, catalog.Valid("pubg mobile"), "game titles are case-sensitive")

	require.Equal(t, []string{"PUBG MOBILE", "LAST ISLAND OF SURVIVAL", "FREE FIRE"}, catalog.Names())
}

func TestValidateGames(t *testing.T) {
	cases := []struct {
		name    string
		entries []GameEntry
		wantErr string
	}{
		{
			name:    "empty catalog",
			entries: nil,
			wantErr: "game catalog is empty",
		},
		{
			name:    "missing prefix",
			entries: []GameEntry{{Name: "PUBG MOBILE"}},
			wantErr: "game entries need a name and a prefix",
		},
		{
			name:    "lowercase prefix",
			entries: []GameEntry{{Name: "PUBG MOBILE", Prefix: "pbgm"}},
			wantErr: "game prefixes must be uppercase",
		},
		{
			name: "duplicate name",
			entries: []GameEntry{
				{Name: "PUBG MOBILE", Prefix: "PBGM"},
				{Name: "PUBG MOBILE", Prefix: "PBG2"},
			},
			wantErr: "duplicate game name: PUBG MOBILE",
		},
		{
			name:    "valid",
			entries: DefaultGames(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateGames(tc.entries)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.wantErr)
		})
	}
}
