package position

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtEndChainIsStrictlyIncreasing(t *testing.T) {
	last := ""
	var keys []string
	for i := 0; i < 200; i++ {
		key := AtEnd(last)
		if last != "" {
			require.Greater(t, key, last, "key %d must sort after its predecessor", i)
		}
		keys = append(keys, key)
		last = key
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	assert.Equal(t, sorted, keys)
}

func TestAtStartChainIsStrictlyDecreasing(t *testing.T) {
	first := ""
	for i := 0; i < 100; i++ {
		key := AtStart(first)
		if first != "" {
			require.Less(t, key, first, "key %d must sort before its successor", i)
		}
		first = key
	}
}

func TestBetween(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
	}{
		{"empty list", "", ""},
		{"after only bound", "V", ""},
		{"before only bound", "", "V"},
		{"wide gap", "1", "y"},
		{"adjacent digits", "V", "W"},
		{"adjacent with longer after", "1", "2V"},
		{"shared prefix", "VV", "VW"},
		{"before is prefix of after", "V", "VV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := Between(tt.before, tt.after)
			require.NotEmpty(t, key)
			if tt.before != "" {
				assert.Greater(t, key, tt.before)
			}
			if tt.after != "" {
				assert.Less(t, key, tt.after)
			}
		})
	}
}

func TestBetweenRepeatedBisection(t *testing.T) {
	before, after := "", ""
	for i := 0; i < 50; i++ {
		key := Between(before, after)
		if before != "" {
			require.Greater(t, key, before)
		}
		if after != "" {
			require.Less(t, key, after)
		}
		// Alternate which bound tightens.
		if i%2 == 0 {
			before = key
		} else {
			after = key
		}
	}
}

func TestMalformedKeysFallBackInsteadOfFailing(t *testing.T) {
	// Corrupt characters and inverted bounds must never surface an error;
	// the synthesized key still sorts on the intended side.
	key := AtEnd("not a key!")
	require.NotEmpty(t, key)
	assert.Greater(t, key, "zzz")

	key = AtStart("still not a key!")
	require.NotEmpty(t, key)
	assert.Less(t, key, "0001")

	key = Between("z", "a") // inverted
	require.NotEmpty(t, key)
}

func TestTrailingMinimumDigitRejected(t *testing.T) {
	_, err := midpoint("V0", "")
	require.Error(t, err)

	_, err = midpoint("", "V0")
	require.Error(t, err)
}

func TestKeysNeverEndWithMinimumDigit(t *testing.T) {
	last := ""
	for i := 0; i < 300; i++ {
		key := AtEnd(last)
		require.NotEqual(t, byte('0'), key[len(key)-1], "key %q", key)
		last = key
	}
}
