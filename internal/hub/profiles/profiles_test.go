// SPDX-License-Identifier: BSD-3-Clause

package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsBuiltinLibrary(t *testing.T) {
	e := New()
	list := e.List()
	assert.Len(t, list, 7)

	p, err := e.Get("builtin-balanced")
	require.NoError(t, err)
	assert.True(t, p.System)
	assert.Equal(t, "Balanced", p.Name)
}

func TestValidateRejectsFewerThanTwoPoints(t *testing.T) {
	err := Validate([]CurvePoint{{Temperature: 50, Duty: 50}})
	require.ErrorIs(t, err, ErrInvalidCurve)
}

func TestValidateRejectsDuplicateTemperatures(t *testing.T) {
	err := Validate([]CurvePoint{{Temperature: 50, Duty: 10}, {Temperature: 50, Duty: 90}})
	require.ErrorIs(t, err, ErrInvalidCurve)
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	err := Validate([]CurvePoint{{Temperature: -5, Duty: 10}, {Temperature: 50, Duty: 10}})
	require.ErrorIs(t, err, ErrInvalidCurve)

	err = Validate([]CurvePoint{{Temperature: 10, Duty: 10}, {Temperature: 50, Duty: 200}})
	require.ErrorIs(t, err, ErrInvalidCurve)
}

func TestCloneProducesIndependentUserProfile(t *testing.T) {
	e := New()
	clone, err := e.Clone("builtin-silent", "My Silent")
	require.NoError(t, err)

	assert.NotEqual(t, "builtin-silent", clone.ID)
	assert.False(t, clone.System)
	assert.Equal(t, "My Silent", clone.Name)

	orig, err := e.Get("builtin-silent")
	require.NoError(t, err)
	assert.True(t, orig.System)
}

func TestExportImportRoundTrips(t *testing.T) {
	src := New()
	doc, err := src.Export([]string{"builtin-balanced"})
	require.NoError(t, err)

	dst := New()
	imported, err := dst.Import(doc, ConflictSkip)
	require.NoError(t, err)
	assert.Empty(t, imported, "builtin-balanced already exists in dst, skip policy drops it")
}

func TestImportRenameResolvesCollision(t *testing.T) {
	src := New()
	doc, err := src.Export([]string{"builtin-balanced"})
	require.NoError(t, err)

	dst := New()
	imported, err := dst.Import(doc, ConflictRename)
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.NotEqual(t, "builtin-balanced", imported[0].ID)
	assert.Len(t, dst.List(), 8)
}

func TestImportRejectsUnrecognizedFormat(t *testing.T) {
	e := New()
	_, err := e.Import([]byte(`{"format":"someone-elses-format","profiles":[]}`), ConflictSkip)
	require.ErrorIs(t, err, ErrMalformedDocument)
}
