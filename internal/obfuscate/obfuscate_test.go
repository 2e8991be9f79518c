package obfuscate

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goextract/internal/types"
)

func user(id int, email string) *types.Record {
	r := types.NewRecord("users", "id")
	r.Set("id", id)
	r.Set("email", email)
	r.Set("name", "Ada Lovelace")
	return r
}

func sortedRunes(s string) string {
	r := []rune(s)
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return string(r)
}

func TestApply_DefaultStrategyIsPermutation(t *testing.T) {
	rec := user(1, "a@b.com")
	o := New(Rules{"email": {}}, WithShuffler(rand.New(rand.NewSource(1))))

	require.NoError(t, o.Apply([]*types.Record{rec}))

	got, _ := rec.Get("email")
	s, ok := got.(string)
	require.True(t, ok)
	assert.Len(t, []rune(s), 7)
	assert.Equal(t, sortedRunes("a@b.com"), sortedRunes(s))
}

func TestApply_QualifiedRuleOnlyMatchesItsTable(t *testing.T) {
	u := user(1, "ada@example.org")
	account := types.NewRecord("accounts", "id")
	account.Set("id", 9)
	account.Set("email", "billing@example.org")

	mask, err := Named(StrategyMask)
	require.NoError(t, err)
	require.NoError(t, Apply([]*types.Record{u, account}, Rules{"accounts.email": mask}))

	got, _ := u.Get("email")
	assert.Equal(t, "ada@example.org", got)
	got, _ = account.Get("email")
	assert.Equal(t, strings.Repeat("*", len("billing@example.org")), got)
}

func TestApply_EmptyValuesAreLeftAlone(t *testing.T) {
	calls := 0
	s := Strategy{Value: func(interface{}) (interface{}, error) { calls++; return "x", nil }}

	blank := user(1, "")
	null := user(2, "")
	null.Set("email", nil)

	require.NoError(t, Apply([]*types.Record{blank, null}, Rules{"email": s}))
	assert.Equal(t, 0, calls)
	got, _ := null.Get("email")
	assert.Nil(t, got)
}

func TestApply_RecordStrategySeesRecord(t *testing.T) {
	rec := user(42, "ada@example.org")
	email, err := Named(StrategyEmail)
	require.NoError(t, err)

	require.NoError(t, Apply([]*types.Record{rec}, Rules{"email": email}))
	got, _ := rec.Get("email")
	assert.Equal(t, "users-42@example.com", got)
}

func TestApply_BareThenQualified(t *testing.T) {
	rec := user(1, "ada@example.org")
	upper := Strategy{Value: func(old interface{}) (interface{}, error) { return strings.ToUpper(old.(string)), nil }}
	suffix := Strategy{Value: func(old interface{}) (interface{}, error) { return old.(string) + "!", nil }}

	require.NoError(t, Apply([]*types.Record{rec}, Rules{"name": upper, "users.name": suffix}))
	got, _ := rec.Get("name")
	assert.Equal(t, "ADA LOVELACE!", got)
}

func TestApply_MutatesSharedRecord(t *testing.T) {
	rec := user(1, "ada@example.org")
	batchA := []*types.Record{rec}
	batchB := []*types.Record{rec}

	require.NoError(t, Apply(batchA, Rules{"email": named[StrategyNull]}))
	got, _ := batchB[0].Get("email")
	assert.Nil(t, got)
}

func TestApplyCopy_LeavesInputUntouched(t *testing.T) {
	rec := user(1, "ada@example.org")
	hash, err := Named(StrategyHash)
	require.NoError(t, err)

	out, err := New(Rules{"email": hash}).ApplyCopy([]*types.Record{rec})
	require.NoError(t, err)

	orig, _ := rec.Get("email")
	assert.Equal(t, "ada@example.org", orig)
	got, _ := out[0].Get("email")
	assert.Len(t, got, 64)
	assert.NotEqual(t, orig, got)
}

func TestApply_StrategyErrorAborts(t *testing.T) {
	boom := errors.New("vault unavailable")
	s := Strategy{Value: func(interface{}) (interface{}, error) { return nil, boom }}

	err := Apply([]*types.Record{user(7, "ada@example.org")}, Rules{"email": s})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "users.email (7)")
}

func TestApply_NonStringValues(t *testing.T) {
	rec := types.NewRecord("cards", "id")
	rec.Set("id", 1)
	rec.Set("pin", 1234)

	require.NoError(t, Apply([]*types.Record{rec}, Rules{"pin": {}}))
	got, _ := rec.Get("pin")
	assert.Equal(t, sortedRunes("1234"), sortedRunes(got.(string)))
}

func TestFromConfig(t *testing.T) {
	rules, err := FromConfig(map[string]string{"email": "email", "users.name": "", "ssn": "hash"})
	require.NoError(t, err)
	assert.Len(t, rules, 3)
	assert.NotNil(t, rules["email"].Record)
	assert.Nil(t, rules["users.name"].Value)

	_, err = FromConfig(map[string]string{"email": "rot13"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "obfuscation.email")
	assert.Contains(t, err.Error(), "shuffle")
}

func TestNilObfuscatorIsNoop(t *testing.T) {
	var o *Obfuscator
	assert.True(t, o.Empty())
	assert.NoError(t, o.Apply([]*types.Record{user(1, "x")}))
}
