package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseFlag(t *testing.T) {
	assert.Equal(t, "close-nifty", closeFlag("close_nifty"))
	assert.Equal(t, "close-niftynxt50", closeFlag("close_niftynxt50"))
}

func TestClosesFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addExtractFlags(cmd)
	require.NoError(t, cmd.Flags().Set("close-banknifty", "48000.5"))

	closes, err := closesFromFlags(cmd)
	require.NoError(t, err)
	v, ok := closes.Lookup("banknifty")
	require.True(t, ok)
	assert.Equal(t, 48000.5, v)

	require.NoError(t, cmd.Flags().Set("close-sensex", "n/a"))
	_, err = closesFromFlags(cmd)
	assert.EqualError(t, err, "Invalid close for SENSEX")
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name     string
		out      string
		expected string
	}{
		{"default", "", "Bill_PR05_2026-02-12.pdf"},
		{"directory", dir, filepath.Join(dir, "Bill_PR05_2026-02-12.pdf")},
		{"file", filepath.Join(dir, "nested", "bill.pdf"), filepath.Join(dir, "nested", "bill.pdf")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test"}
			addExtractFlags(cmd)
			require.NoError(t, cmd.Flags().Set("out", tc.out))

			path, err := outputPath(cmd, "Bill_PR05_2026-02-12.pdf")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, path)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "nested"))
	assert.NoError(t, err)
}

func TestOpenExtractsMissingFile(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addExtractFlags(cmd)
	require.NoError(t, cmd.Flags().Set("daywise", filepath.Join(t.TempDir(), "missing.csv")))

	_, _, _, err := openExtracts(cmd)
	assert.ErrorContains(t, err, "open daywise extract")
}
