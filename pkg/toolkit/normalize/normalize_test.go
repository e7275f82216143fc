package normalize

import (
	"testing"

	"github.com/loopwright/koru/pkg/ioerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSearchDirectory(t *testing.T) {
	isFile := func(p string) bool { return p == "/root/project/src/main.go" }

	assert.Equal(t, ".", ResolveSearchDirectory("/root/project", ".", isFile))
	assert.Equal(t, ".", ResolveSearchDirectory("/root/project", "", isFile))
	assert.Equal(t, "src", ResolveSearchDirectory("/root/project", "/root/project/src", isFile))
	assert.Equal(t, "src", ResolveSearchDirectory("/root/project", "src/main.go", isFile))
}

func TestWrapGlobPattern(t *testing.T) {
	assert.Equal(t, "**/*handler*", WrapGlobPattern("handler"))
	assert.Equal(t, "*_test.go", WrapGlobPattern("*_test.go"))
	assert.Equal(t, "src/{a,b}.go", WrapGlobPattern("src/{a,b}.go"))
}

func TestNormalizeRead_BackupSuffixRescue(t *testing.T) {
	h := NewReadHistory()
	exists := func(p string) bool { return p == "main.go" }

	plan, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "main.go.bak"}, exists, nil)
	require.NoError(t, err)
	assert.Equal(t, "main.go", plan.Path)
}

func TestNormalizeRead_BackupSuffixNoRescueWhenPrimaryMissing(t *testing.T) {
	h := NewReadHistory()
	exists := func(p string) bool { return false }

	// Without a primary the path keeps its backup suffix, and the
	// secondary-artifact block then refuses it.
	_, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "main.go.bak"}, exists, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".bak")
}

func TestNormalizeRead_CrossCompileRescue(t *testing.T) {
	h := NewReadHistory()
	sibling := func(p string) bool { return p == "app.ts" }

	plan, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "app.js"}, nil, sibling)
	require.NoError(t, err)
	assert.Equal(t, "app.ts", plan.Path)
}

func TestNormalizeRead_OffsetSanitization(t *testing.T) {
	h := NewReadHistory()
	for _, offset := range []int{0, -1, -100} {
		plan, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "f.go", Offset: offset}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, plan.Offset)
	}
}

func TestNormalizeRead_AdaptiveLimitBaselines(t *testing.T) {
	cases := []struct {
		tier     Tier
		expected int
	}{
		{TierSmall, 180},
		{TierMedium, 300},
		{TierLarge, 500},
	}
	for _, c := range cases {
		h := NewReadHistory()
		plan, err := h.NormalizeRead(c.tier, ReadRequest{Path: "a.go"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, c.expected, plan.Limit)
	}
}

func TestNormalizeRead_KnownSmallFileReadWhole(t *testing.T) {
	h := NewReadHistory()
	h.RecordKnownSize("small.go", 42)
	plan, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "small.go"}, nil, nil)
	require.NoError(t, err)
	// The limit is never below the tier baseline (300 for medium),
	// which covers all 42 lines.
	assert.Equal(t, 300, plan.Limit)
}

func TestNormalizeRead_KnownLargeFileScalesLimitUp(t *testing.T) {
	h := NewReadHistory()
	h.RecordKnownSize("huge.go", 5000)
	plan, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "huge.go"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 600, plan.Limit)
}

func TestNormalizeRead_RepeatedAttemptsEscalate(t *testing.T) {
	h := NewReadHistory()
	first, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "a.go"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 300, first.Limit)

	second, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "a.go"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 420, second.Limit)

	third, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "a.go"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 480, third.Limit)
}

func TestNormalizeRead_LimitClampedToRequestedAndCeiling(t *testing.T) {
	h := NewReadHistory()
	plan, err := h.NormalizeRead(TierSmall, ReadRequest{Path: "a.go", Limit: 900}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 900, plan.Limit)

	h2 := NewReadHistory()
	h2.RecordKnownSize("b.go", 5000)
	plan2, err := h2.NormalizeRead(TierLarge, ReadRequest{Path: "b.go", Limit: 50}, nil, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, plan2.Limit, maxEffectiveLimit)
}

func TestNormalizeRead_MicroWindowGuardRejectsAfterThreshold(t *testing.T) {
	h := NewReadHistory()
	var lastErr error
	for i := 0; i < smallWindowLimit+2; i++ {
		_, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "tiny.go", Limit: 5}, nil, nil)
		lastErr = err
	}
	require.Error(t, lastErr)
	assert.True(t, ioerr.Is(lastErr, ioerr.CodeSchemaValidationFail))
}

func TestNormalizeRead_SecondaryArtifactBlocked(t *testing.T) {
	h := NewReadHistory()
	_, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "/project/dist/bundle.js"}, nil, nil)
	require.Error(t, err)
	assert.True(t, ioerr.Is(err, ioerr.CodeSchemaValidationFail))
}

func TestNormalizeRead_SecondaryArtifactAllowedWhenExplicit(t *testing.T) {
	h := NewReadHistory()
	plan, err := h.NormalizeRead(TierMedium, ReadRequest{Path: "/project/dist/bundle.js", AllowDerived: true}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/project/dist/bundle.js", plan.Path)
}

func TestNormalizeShellCwd_BlankBecomesDot(t *testing.T) {
	resolved, err := NormalizeShellCwd("/work", "")
	require.NoError(t, err)
	assert.Equal(t, "/work", resolved)
}

func TestNormalizeShellCwd_RelativeResolvesAgainstWorkdir(t *testing.T) {
	resolved, err := NormalizeShellCwd("/work", "sub")
	require.NoError(t, err)
	assert.Equal(t, "/work/sub", resolved)
}

func TestNormalizeShellCwd_EscapeRejected(t *testing.T) {
	_, err := NormalizeShellCwd("/work", "../etc")
	require.Error(t, err)
	assert.True(t, ioerr.Is(err, ioerr.CodeInvalidCwd))
}

func TestNormalizeShellCwd_DeepEscapeRejected(t *testing.T) {
	_, err := NormalizeShellCwd("/work", "sub/../../etc")
	require.Error(t, err)
	assert.True(t, ioerr.Is(err, ioerr.CodeInvalidCwd))
}
