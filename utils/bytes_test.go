package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{512, "512 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
		{1099511627776, "1 TB"},
		{5 * 1099511627776 * 1024, "5120 TB"},
		{1234567, "1.18 MB"},
		{-2048, "-2 KB"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatBytes(tc.in), "FormatBytes(%d)", tc.in)
	}
}

func TestFormatBytesIsStable(t *testing.T) {
	for _, n := range []int64{0, 999, 4096, 7340032} {
		assert.Equal(t, FormatBytes(n), FormatBytes(n))
	}
}
