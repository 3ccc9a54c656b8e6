package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name  string
		req   PageRequest
		items []int
		limit int
	}{
		{"por defecto", PageRequest{}, []int{1, 2, 3, 4, 5}, DefaultPageLimit},
		{"ventana interior", PageRequest{Limit: 2, Offset: 1}, []int{2, 3}, 2},
		{"última página corta", PageRequest{Limit: 2, Offset: 4}, []int{5}, 2},
		{"offset fuera de rango", PageRequest{Limit: 2, Offset: 9}, []int{}, 2},
		{"offset negativo", PageRequest{Limit: 1, Offset: -3}, []int{1}, 1},
		{"límite acotado", PageRequest{Limit: 10 * MaxPageLimit}, []int{1, 2, 3, 4, 5}, MaxPageLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Page(all, tt.req)
			assert.Equal(t, 5, got.Total)
			assert.Equal(t, tt.limit, got.Limit)
			assert.Equal(t, tt.items, got.Items)
		})
	}

	empty := Page([]string(nil), PageRequest{})
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.Total)
}
