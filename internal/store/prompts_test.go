package store

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreate(t *testing.T, s *Store, content string, promptType types.PromptType) types.Prompt {
	t.Helper()
	p, err := s.CreatePrompt(content, types.DefaultPromptSettings(), "tester", promptType)
	require.NoError(t, err)
	return p
}

func TestCreatePromptActivatesAndVersions(t *testing.T) {
	s := newTestStore(t)

	p1 := mustCreate(t, s, "v1", types.PromptSetter)
	assert.Equal(t, 1, p1.Version)
	assert.True(t, p1.IsActive)

	p2 := mustCreate(t, s, "v2", types.PromptSetter)
	assert.Equal(t, 2, p2.Version)

	active, err := s.GetActivePrompt(types.PromptSetter)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, active.ID)

	// previous version was deactivated
	old, err := s.GetPrompt(p1.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
}

func TestVersionSequencesAreIndependentPerType(t *testing.T) {
	s := newTestStore(t)

	mustCreate(t, s, "s1", types.PromptSetter)
	mustCreate(t, s, "s2", types.PromptSetter)
	c1 := mustCreate(t, s, "c1", types.PromptCloser)

	assert.Equal(t, 1, c1.Version)

	s3 := mustCreate(t, s, "s3", types.PromptSetter)
	assert.Equal(t, 3, s3.Version)

	// both types keep their own active prompt
	activeSetter, err := s.GetActivePrompt(types.PromptSetter)
	require.NoError(t, err)
	activeCloser, err := s.GetActivePrompt(types.PromptCloser)
	require.NoError(t, err)
	assert.Equal(t, s3.ID, activeSetter.ID)
	assert.Equal(t, c1.ID, activeCloser.ID)
}

func TestCreateAfterDeleteFollowsMaxRemaining(t *testing.T) {
	s := newTestStore(t)

	p1 := mustCreate(t, s, "v1", types.PromptSetter)
	mustCreate(t, s, "v2", types.PromptSetter)
	mustCreate(t, s, "v3", types.PromptSetter)
	require.NoError(t, s.DeletePrompt(p1.ID))

	p4 := mustCreate(t, s, "v4", types.PromptSetter)
	assert.Equal(t, 4, p4.Version, "create is 1 + max remaining; deleting v1 renumbers nothing")

	history, err := s.ListPromptHistory(types.PromptSetter)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestDeleteActivePromotesHighestRemaining(t *testing.T) {
	s := newTestStore(t)

	p1 := mustCreate(t, s, "v1", types.PromptSetter)
	p2 := mustCreate(t, s, "v2", types.PromptSetter)
	p3 := mustCreate(t, s, "v3", types.PromptSetter)

	// restore v1 so the active prompt is not the highest version
	_, err := s.RestorePrompt(p1.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeletePrompt(p1.ID))

	active, err := s.GetActivePrompt(types.PromptSetter)
	require.NoError(t, err)
	assert.Equal(t, p3.ID, active.ID, "highest remaining version auto-activates")
	_ = p2
}

func TestDeleteLastPromptLeavesNoneActive(t *testing.T) {
	s := newTestStore(t)

	p := mustCreate(t, s, "only", types.PromptCloser)
	require.NoError(t, s.DeletePrompt(p.ID))

	_, err := s.GetActivePrompt(types.PromptCloser)
	var noActive *apperr.NoActivePromptError
	assert.ErrorAs(t, err, &noActive)
}

func TestRestoreUnknownPromptIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RestorePrompt("nope")
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteUnknownPromptIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeletePrompt("nope")
	assert.True(t, apperr.IsNotFound(err))
}

// TestAtMostOneActivePerTypeInvariant runs random create/restore/delete
// sequences and checks the activation invariant after every operation.
func TestAtMostOneActivePerTypeInvariant(t *testing.T) {
	s := newTestStore(t)
	rng := rand.New(rand.NewSource(42))
	promptTypes := []types.PromptType{types.PromptSetter, types.PromptCloser}

	var ids []string
	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0:
			p := mustCreate(t, s, "content", promptTypes[rng.Intn(2)])
			ids = append(ids, p.ID)
		case 1:
			if len(ids) > 0 {
				_, err := s.RestorePrompt(ids[rng.Intn(len(ids))])
				if err != nil {
					require.True(t, apperr.IsNotFound(err))
				}
			}
		case 2:
			if len(ids) > 0 {
				idx := rng.Intn(len(ids))
				err := s.DeletePrompt(ids[idx])
				if err != nil {
					require.True(t, apperr.IsNotFound(err))
				} else {
					ids = append(ids[:idx], ids[idx+1:]...)
				}
			}
		}

		for _, pt := range promptTypes {
			var n int
			err := s.db.QueryRow(`SELECT COUNT(1) FROM prompts WHERE prompt_type = ? AND is_active = 1`, string(pt)).Scan(&n)
			require.NoError(t, err)
			require.LessOrEqual(t, n, 1, "op %d: more than one active %s prompt", i, pt)
		}
	}
}

func TestListPromptHistoryNewestFirst(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "v1", types.PromptSetter)
	mustCreate(t, s, "v2", types.PromptSetter)
	mustCreate(t, s, "v3", types.PromptSetter)

	history, err := s.ListPromptHistory(types.PromptSetter)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].Version)
	assert.Equal(t, 1, history[2].Version)
}

func TestPromptSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	settings := types.PromptSettings{
		IncludeContactInfo: true,
		IncludeCalls:       true,
		Model:              "gpt-4o-mini",
		Language:           "en",
	}
	p, err := s.CreatePrompt("hello", settings, "me", types.PromptCloser)
	require.NoError(t, err)

	got, err := s.GetPrompt(p.ID)
	require.NoError(t, err)
	assert.Equal(t, settings, got.Settings)
	assert.Equal(t, "me", got.CreatedBy)
}
