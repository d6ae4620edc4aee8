package vault

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqGen returns a generator whose candidates are unique per
// (label, original, salt), mimicking a deterministic faker.
func seqGen(label, original string, _ int, salt int) string {
	return fmt.Sprintf("fake-%s-%s-%d", label, original, salt)
}

func TestLookupOrCreateIsConsistent(t *testing.T) {
	v := New(-30, seqGen)

	first, created, err := v.LookupOrCreate("Jane Doe", "PERSON")
	require.NoError(t, err)
	assert.True(t, created)

	// Same pair from a "second document" yields the identical replacement.
	second, created, err := v.LookupOrCreate("Jane Doe", "PERSON")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	// Same original under a different label is a distinct mapping.
	other, created, err := v.LookupOrCreate("Jane Doe", "ORGANIZATION")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first, other)
}

func TestReverseLookupRoundTrip(t *testing.T) {
	v := New(0, seqGen)

	rep, _, err := v.LookupOrCreate("alice@example.com", "EMAIL_ADDRESS")
	require.NoError(t, err)

	orig, err := v.ReverseLookup(rep)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", orig)
}

func TestReverseLookupUnknown(t *testing.T) {
	v := New(0, seqGen)
	_, err := v.ReverseLookup("never-stored")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBijectionUnderCollision(t *testing.T) {
	// Generator collides on salt 0 for every input and disambiguates on
	// salt 1, exercising the bounded retry path.
	gen := func(label, original string, _ int, salt int) string {
		if salt == 0 {
			return "same-candidate"
		}
		return fmt.Sprintf("unique-%s-%d", original, salt)
	}
	v := New(0, gen)

	a, _, err := v.LookupOrCreate("first", "PERSON")
	require.NoError(t, err)
	b, _, err := v.LookupOrCreate("second", "PERSON")
	require.NoError(t, err)

	assert.Equal(t, "same-candidate", a)
	assert.Equal(t, "unique-second-1", b)
	assert.NotEqual(t, a, b)
}

func TestCollisionExhausted(t *testing.T) {
	gen := func(_, _ string, _, _ int) string { return "always-the-same" }
	v := New(0, gen)

	_, _, err := v.LookupOrCreate("first", "PERSON")
	require.NoError(t, err)

	_, _, err = v.LookupOrCreate("second", "PERSON")
	assert.ErrorIs(t, err, ErrCollisionExhausted)

	// The failed creation must not have mutated the vault.
	assert.Equal(t, 1, v.Len())
	_, _, err = v.LookupOrCreate("third", "ORGANIZATION")
	assert.ErrorIs(t, err, ErrCollisionExhausted)
	assert.Equal(t, 1, v.Len())
}

func TestReplacementNeverEqualsOriginal(t *testing.T) {
	// Salt 0 echoes the original back; the vault must skip it.
	gen := func(_, original string, _, salt int) string {
		if salt == 0 {
			return original
		}
		return "synthetic-" + original
	}
	v := New(0, gen)

	rep, _, err := v.LookupOrCreate("echo-me", "PERSON")
	require.NoError(t, err)
	assert.Equal(t, "synthetic-echo-me", rep)
}

func TestReplacementNeverShadowsStoredOriginal(t *testing.T) {
	// A candidate equal to an already-stored original would make reverse
	// substitution rewrite text that was never anonymized.
	gen := func(_, original string, _, salt int) string {
		if original == "second" && salt == 0 {
			return "first" // collides with a stored original
		}
		return "rep-" + original + fmt.Sprint(salt)
	}
	v := New(0, gen)

	_, _, err := v.LookupOrCreate("first", "PERSON")
	require.NoError(t, err)
	rep, _, err := v.LookupOrCreate("second", "PERSON")
	require.NoError(t, err)
	assert.NotEqual(t, "first", rep)
}

func TestFreezeMakesVaultReadOnly(t *testing.T) {
	v := New(0, seqGen)
	_, _, err := v.LookupOrCreate("value", "PERSON")
	require.NoError(t, err)

	v.Freeze(3)
	assert.True(t, v.Frozen())

	_, _, err = v.LookupOrCreate("another", "PERSON")
	assert.ErrorIs(t, err, ErrFrozen)

	stats := v.Stats()
	assert.Equal(t, 3, stats.DocumentsProcessed)
	assert.Equal(t, 1, stats.TotalReplacements)

	// Reads still work after freeze.
	rep := v.Records()[0].Replacement
	orig, err := v.ReverseLookup(rep)
	require.NoError(t, err)
	assert.Equal(t, "value", orig)
}

func TestFreezeTwiceKeepsFirstStatistics(t *testing.T) {
	v := New(0, seqGen)
	v.Freeze(2)
	v.Freeze(99)
	assert.Equal(t, 2, v.Stats().DocumentsProcessed)
}

func TestConcurrentLookupOrCreateKeepsBijection(t *testing.T) {
	v := New(0, seqGen)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 50 {
				// Half the keys are shared across workers, half unique.
				orig := fmt.Sprintf("shared-%d", i%10)
				if i%2 == 1 {
					orig = fmt.Sprintf("unique-%d-%d", w, i)
				}
				_, _, err := v.LookupOrCreate(orig, "PERSON")
				if err != nil {
					t.Errorf("LookupOrCreate(%q): %v", orig, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[string]string)
	for _, rec := range v.Records() {
		if prev, dup := seen[rec.Replacement]; dup {
			t.Fatalf("replacement %q maps to both %q and %q", rec.Replacement, prev, rec.Original)
		}
		seen[rec.Replacement] = rec.Original
	}
}

func TestSaveRequiresFrozenVault(t *testing.T) {
	v := New(0, seqGen)
	err := v.Save(filepath.Join(t.TempDir(), "vault.json"))
	require.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	v := New(-30, seqGen)
	_, _, err := v.LookupOrCreate("Jane Doe", "PERSON")
	require.NoError(t, err)
	_, _, err = v.LookupOrCreate("2024-03-15", "DATE_TIME")
	require.NoError(t, err)
	v.Freeze(2)

	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, v.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.True(t, loaded.Frozen())
	assert.Equal(t, -30, loaded.DateOffsetDays())
	assert.Equal(t, v.Stats(), loaded.Stats())
	assert.Equal(t, v.Records(), loaded.Records())

	// Loaded vaults are restoration-only.
	_, _, err = loaded.LookupOrCreate("new", "PERSON")
	assert.ErrorIs(t, err, ErrFrozen)

	// Reverse lookups survive the round trip.
	for _, rec := range v.Records() {
		orig, err := loaded.ReverseLookup(rec.Replacement)
		require.NoError(t, err)
		assert.Equal(t, rec.Original, orig)
	}
}

func TestLoadRefusesUnknownVersion(t *testing.T) {
	data := []byte(`{"version":"1.0","dateOffsetDays":0,"mappings":[]}`)
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestLoadRefusesGarbage(t *testing.T) {
	_, err := Parse([]byte("{truncated"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedVersion))
}
