package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 25, 51)
	require.Equal(t, 2, p.Page)
	require.Equal(t, 25, p.PerPage)
	require.Equal(t, 51, p.Total)
	require.Equal(t, 3, p.TotalPages)
}

func TestNewPaginationNormalizesInputs(t *testing.T) {
	p := NewPagination(0, -5, 7)
	require.Equal(t, 1, p.Page)
	require.Equal(t, DefaultPerPage, p.PerPage)
	require.Equal(t, 1, p.TotalPages)

	require.Zero(t, NewPagination(1, 10, 0).TotalPages)
}
