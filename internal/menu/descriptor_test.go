package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want Descriptor
	}{
		{
			text: "A, integer Hz, between 1 and 1000",
			want: Descriptor{Mode: "A", Type: TypeInteger, Unit: "Hz", Min: "1", Max: "1000"},
		},
		{
			text: "integer, Hz, between 1 and 1000, or \"auto\" [0Hz]",
			want: Descriptor{Type: TypeInteger, Unit: "Hz", Min: "1", Max: "1000", SpecialLabel: "auto", SpecialValue: "0"},
		},
		{
			text: "A, string 32",
			want: Descriptor{Mode: "A", Type: TypeString, MaxChars: 32},
		},
		{
			text: "A, enum",
			want: Descriptor{Mode: "A", Type: TypeEnum},
		},
		{
			text: "B, float, V, greater than or equal to 0.5",
			want: Descriptor{Mode: "B", Type: TypeFloat, Unit: "V", Min: "0.5"},
		},
		{
			text: "float, less than 3.3",
			want: Descriptor{Type: TypeFloat, Max: "3.3", MaxExclusive: true},
		},
		{
			text: "A, boolean",
			want: Descriptor{Mode: "A", Type: TypeBoolean},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			d, err := ParseDescriptor(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *d)

			again, err := ParseDescriptor(d.String())
			require.NoError(t, err)
			assert.Equal(t, *d, *again)
		})
	}
}

func TestParseDescriptorErrors(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"A",
		"A, complex",
		"A, string x",
		"A, integer, between 1",
		"A, integer, Hz, sometimes",
	} {
		text := text
		t.Run(text, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDescriptor(text)
			assert.Error(t, err)
		})
	}
}

func TestDescriptorCheck(t *testing.T) {
	t.Parallel()

	rate, err := ParseDescriptor("A, integer, Hz, between 1 and 1000, or \"auto\" [0Hz]")
	require.NoError(t, err)
	name, err := ParseDescriptor(ConstantDescriptorText)
	require.NoError(t, err)
	gain, err := ParseDescriptor("A, float, dB, greater than 0")
	require.NoError(t, err)
	flag, err := ParseDescriptor("A, boolean")
	require.NoError(t, err)

	tests := []struct {
		name  string
		d     *Descriptor
		value string
		ok    bool
	}{
		{"in range", rate, "100", true},
		{"with unit", rate, "100Hz", true},
		{"upper bound", rate, "1000", true},
		{"above", rate, "1001", false},
		{"below", rate, "-1", false},
		{"fraction", rate, "1.5", false},
		{"special label", rate, "AUTO", true},
		{"special value", rate, "0", true},
		{"not a number", rate, "fast", false},
		{"exclusive bound", gain, "0", false},
		{"above exclusive bound", gain, "0.1dB", true},
		{"string fits", name, "short", true},
		{"boolean", flag, "on", true},
		{"not boolean", flag, "maybe", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.d.Check(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidValue)
			}
		})
	}
}

func TestDescriptorEqual(t *testing.T) {
	t.Parallel()

	rate := &Descriptor{Type: TypeFloat, Unit: "Hz", SpecialLabel: "AUTO"}
	flag := &Descriptor{Type: TypeBoolean}
	name := &Descriptor{Type: TypeString, MaxChars: 32}
	var none *Descriptor

	tests := []struct {
		name string
		d    *Descriptor
		a, b string
		want bool
	}{
		{"same number", rate, "200Hz", "200.0 Hz", true},
		{"different number", rate, "200Hz", "100Hz", false},
		{"special label", rate, "auto", "AUTO", true},
		{"special against number", rate, "AUTO", "0", false},
		{"boolean spellings", flag, "yes", "true", true},
		{"boolean mismatch", flag, "on", "off", false},
		{"string is exact", name, "Logger", "logger", false},
		{"trimmed", name, " Logger ", "Logger", true},
		{"nil descriptor", none, "a", "b", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.d.Equal(tt.a, tt.b))
		})
	}
}

func TestParameterMatches(t *testing.T) {
	t.Parallel()

	p := NewParameter("Sample rate", "1", "20kHz")
	p.Descriptor = &Descriptor{Type: TypeFloat, Unit: "kHz"}
	assert.True(t, p.Matches("20.00kHz"))
	assert.False(t, p.Matches("48kHz"))
}
