package migrations

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_EveryVersionHasUpAndDown(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	defer src.Close()

	var versions []uint
	v, err := src.First()
	require.NoError(t, err)
	for {
		versions = append(versions, v)

		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "version %d up", v)
		up.Close()
		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d down", v)
		down.Close()

		if v, err = src.Next(v); err != nil {
			break
		}
	}
	assert.Equal(t, []uint{1, 2}, versions)
}

// Los anchos de columna tienen que aceptar lo que aceptan los validadores.
func TestWidenColumns_MatchValidatorLimits(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	defer src.Close()

	r, _, err := src.ReadUp(2)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	sql := string(b)

	for _, want := range []string{
		"name TYPE VARCHAR(150)",
		"address TYPE VARCHAR(255)",
		"species TYPE VARCHAR(100)",
		"breed TYPE VARCHAR(100)",
		"CHECK (price <= 999999.99)",
	} {
		assert.True(t, strings.Contains(sql, want), "missing %q", want)
	}
}
