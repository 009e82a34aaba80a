package postaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpandName(t *testing.T) {
	now := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		prefix string
		index  int
		want   string
	}{
		{"plain prefix gets numbered", "Chapter", 0, "Chapter 1"},
		{"plain prefix later index", "Chapter", 4, "Chapter 5"},
		{"counter code", "Step {{n}}", 2, "Step 3"},
		{"counter code with spaces", "Step {{ n }}", 0, "Step 1"},
		{"date default format", "Report {{date}}", 0, "Report 2025-03-07"},
		{"date custom format", "Run {{date:DD/MM/YYYY}}", 0, "Run 07/03/2025"},
		{"counter and date combined", "{{n}} - {{date:YYYY}}", 1, "2 - 2025"},
		{"empty prefix", "", 0, "Item 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandName(tt.prefix, tt.index, now))
		})
	}
}
