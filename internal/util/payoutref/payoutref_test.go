package payoutref

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	period := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	ref, err := Generate(period)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^RF2610-[A-Z2-7]{8}$`), ref)
}

func TestGenerateIsRandom(t *testing.T) {
	period := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		ref, err := Generate(period)
		require.NoError(t, err)
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
}
