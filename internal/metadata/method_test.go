package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMethodKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  MethodKey
		want string
	}{
		{
			name: "plain",
			key:  MethodKey{Module: "app", Owner: "Foo", Name: "Bar(int)"},
			want: "app!Foo.Bar(int)",
		},
		{
			name: "generic",
			key: MethodKey{
				Module:        "corelib",
				Owner:         "List",
				Name:          "Add",
				Instantiation: []string{"int", "string"},
			},
			want: "corelib!List.Add[int, string]",
		},
		{
			name: "placeholder argument",
			key: MethodKey{
				Module:        "corelib",
				Owner:         "List",
				Name:          "Add",
				Instantiation: []string{"!0"},
			},
			want: "corelib!List.Add[!0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.key.String())
		})
	}
}

func TestMethodKey_IsValid(t *testing.T) {
	require.True(t, MethodKey{Module: "app", Owner: "Foo", Name: "Bar"}.IsValid())
	require.False(t, MethodKey{Owner: "Foo", Name: "Bar"}.IsValid())
	require.False(t, MethodKey{Module: "app", Name: "Bar"}.IsValid())
	require.False(t, MethodKey{Module: "app", Owner: "Foo"}.IsValid())
}

func TestMethodKey_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b MethodKey
		want int
	}{
		{
			name: "equal",
			a:    MethodKey{Module: "app", Owner: "Foo", Name: "Bar"},
			b:    MethodKey{Module: "app", Owner: "Foo", Name: "Bar"},
			want: 0,
		},
		{
			name: "module precedes owner",
			a:    MethodKey{Module: "a", Owner: "Z", Name: "Z"},
			b:    MethodKey{Module: "b", Owner: "A", Name: "A"},
			want: -1,
		},
		{
			name: "instantiation breaks ties",
			a:    MethodKey{Module: "app", Owner: "Foo", Name: "Bar", Instantiation: []string{"int"}},
			b:    MethodKey{Module: "app", Owner: "Foo", Name: "Bar", Instantiation: []string{"string"}},
			want: -1,
		},
		{
			name: "non-generic precedes generic",
			a:    MethodKey{Module: "app", Owner: "Foo", Name: "Bar"},
			b:    MethodKey{Module: "app", Owner: "Foo", Name: "Bar", Instantiation: []string{"int"}},
			want: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Compare(tt.b)
			switch {
			case tt.want < 0:
				require.Negative(t, got)
				require.Positive(t, tt.b.Compare(tt.a))
			case tt.want > 0:
				require.Positive(t, got)
			default:
				require.Zero(t, got)
			}
		})
	}
}

func TestFixupKind_Roundtrip(t *testing.T) {
	kinds := []FixupKind{
		FixupMethodCall,
		FixupUnboxingStubCall,
		FixupVirtualCall,
		FixupGenericHelper,
	}
	for _, kind := range kinds {
		parsed, ok := ParseFixupKind(kind.String())
		require.True(t, ok, "kind %s must parse back", kind)
		require.Equal(t, kind, parsed)
	}

	_, ok := ParseFixupKind("bogus")
	require.False(t, ok)
	require.Equal(t, "unknown", FixupKind(0xff).String())
}

func TestSignatureContext_String(t *testing.T) {
	require.Equal(t, "app", SignatureContext{Module: "app"}.String())
	require.Equal(t, "app<T, U>",
		SignatureContext{Module: "app", TypeParams: []string{"T", "U"}}.String())
}

func TestSignatureContext_Compare(t *testing.T) {
	a := SignatureContext{Module: "app", TypeParams: []string{"T"}}
	b := SignatureContext{Module: "app", TypeParams: []string{"T"}}
	c := SignatureContext{Module: "app", TypeParams: []string{"T", "U"}}

	require.Zero(t, a.Compare(b))
	require.Negative(t, a.Compare(c))
	require.Positive(t, c.Compare(a))
}
