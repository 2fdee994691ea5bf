package compile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
module: app
methods:
  - owner: Program
    name: Main
    root: true
    calls:
      - owner: Foo
        method: Bar(int)
  - owner: Foo
    name: Bar(int)
    gc_info_size: 16
`))
	require.NoError(t, err)
	require.Equal(t, "app", m.Module)
	require.Len(t, m.Methods, 2)
	require.True(t, m.Methods[0].Root)
	require.Equal(t, 16, m.Methods[1].GCInfoSize)
	require.Equal(t, "app!Program.Main", m.Methods[0].Key(m.Module).String())
}

func TestParseManifest_BadYAML(t *testing.T) {
	_, err := ParseManifest([]byte("module: [unclosed"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decoding manifest")
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		problems []string
	}{
		{
			name:     "empty",
			manifest: Manifest{},
			problems: []string{
				"manifest has no module name",
				"manifest defines no methods",
				"manifest has no root methods",
			},
		},
		{
			name: "method missing name",
			manifest: Manifest{
				Module:  "app",
				Methods: []ManifestMethod{{Owner: "Program", Root: true}},
			},
			problems: []string{"method 0 (Program.): missing owner or name"},
		},
		{
			name: "duplicate definition",
			manifest: Manifest{
				Module: "app",
				Methods: []ManifestMethod{
					{Owner: "Program", Name: "Main", Root: true},
					{Owner: "Program", Name: "Main"},
				},
			},
			problems: []string{"method 1 (Program.Main): duplicate definition"},
		},
		{
			name: "call missing target",
			manifest: Manifest{
				Module: "app",
				Methods: []ManifestMethod{{
					Owner: "Program", Name: "Main", Root: true,
					Calls: []ManifestCall{{Owner: "Foo"}},
				}},
			},
			problems: []string{"call 0 missing owner or method"},
		},
		{
			name: "unknown fixup kind",
			manifest: Manifest{
				Module: "app",
				Methods: []ManifestMethod{{
					Owner: "Program", Name: "Main", Root: true,
					Calls: []ManifestCall{{Owner: "Foo", Method: "Bar", Kind: "teleport"}},
				}},
			},
			problems: []string{`call 0 has unknown fixup kind "teleport"`},
		},
		{
			name: "no roots",
			manifest: Manifest{
				Module:  "app",
				Methods: []ManifestMethod{{Owner: "Program", Name: "Main"}},
			},
			problems: []string{"manifest has no root methods"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid manifest:")
			for _, p := range tt.problems {
				require.Contains(t, err.Error(), p)
			}
		})
	}
}

func TestManifest_ValidateOK(t *testing.T) {
	m := Manifest{
		Module: "app",
		Methods: []ManifestMethod{
			{Owner: "Program", Name: "Main", Root: true},
		},
	}
	require.NoError(t, m.Validate())
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
module: app
methods:
  - owner: Program
    name: Main
    root: true
`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Equal(t, "app", m.Module)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading manifest")
}
