package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/facultyhours/errors"
)

func testDirectory() *StaticDirectory {
	return &StaticDirectory{Records: []DirectoryRecord{
		{CanonicalID: "c-100", DisplayName: "Dana Levi", Email: "dana.levi@example.edu", CRMID: "crm-1"},
		{CanonicalID: "c-200", DisplayName: "Omer Katz", Email: "omer.katz@example.edu"},
		{CanonicalID: "c-300", DisplayName: "Noa Bar", Email: "noa.bar@example.edu"},
	}}
}

func TestResolveByEmail(t *testing.T) {
	r := NewResolver(testDirectory(), nil)

	res, err := r.Resolve(context.Background(), []string{"  Dana.Levi@Example.EDU "})
	require.NoError(t, err)

	rec := res["  Dana.Levi@Example.EDU "]
	require.NotNil(t, rec)
	assert.Equal(t, "c-100", rec.CanonicalID)
}

func TestResolveByDisplayName(t *testing.T) {
	r := NewResolver(testDirectory(), nil)

	res, err := r.Resolve(context.Background(), []string{"omer   KATZ"})
	require.NoError(t, err)

	rec := res["omer   KATZ"]
	require.NotNil(t, rec)
	assert.Equal(t, "c-200", rec.CanonicalID)
}

func TestResolveUnmatched(t *testing.T) {
	r := NewResolver(testDirectory(), nil)

	res, err := r.Resolve(context.Background(), []string{"ghost@example.edu", "Nobody Here"})
	require.NoError(t, err)

	assert.Nil(t, res["ghost@example.edu"])
	assert.Nil(t, res["Nobody Here"])
	assert.Len(t, res, 2, "unresolved identifiers still get entries")
}

func TestResolveAmbiguousNameIsUnresolved(t *testing.T) {
	dir := &StaticDirectory{Records: []DirectoryRecord{
		{CanonicalID: "c-1", DisplayName: "Alex Cohen", Email: "alex.c@example.edu"},
		{CanonicalID: "c-2", DisplayName: "Alex Cohen", Email: "alex.cohen@example.edu"},
	}}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), []string{"Alex Cohen"})
	require.NoError(t, err)
	assert.Nil(t, res["Alex Cohen"],
		"two directory records sharing a name must not produce a guess")
}

func TestResolveDeterminism(t *testing.T) {
	r := NewResolver(testDirectory(), nil)
	ids := []string{"dana.levi@example.edu", "Noa Bar", "ghost@example.edu"}

	first, err := r.Resolve(context.Background(), ids)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), ids)
	require.NoError(t, err)

	for _, id := range ids {
		if first[id] == nil {
			assert.Nil(t, second[id], "id %q", id)
		} else {
			require.NotNil(t, second[id], "id %q", id)
			assert.Equal(t, first[id].CanonicalID, second[id].CanonicalID, "id %q", id)
		}
	}
}

func TestResolveDirectoryUnavailable(t *testing.T) {
	dir := &StaticDirectory{Err: errors.New("dial tcp: connection refused")}
	r := NewResolver(dir, nil)

	_, err := r.Resolve(context.Background(), []string{"dana.levi@example.edu"})

	require.Error(t, err)
	assert.True(t, errors.IsDirectoryUnavailable(err),
		"an outage must fail the run, not report everyone unresolved")
}

func TestResolveEmailTakesPrecedenceOverName(t *testing.T) {
	// One record's email equals another record's display name shape;
	// the email index must be consulted first.
	dir := &StaticDirectory{Records: []DirectoryRecord{
		{CanonicalID: "c-email", DisplayName: "Someone Else", Email: "shared@example.edu"},
		{CanonicalID: "c-name", DisplayName: "shared@example.edu", Email: "other@example.edu"},
	}}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), []string{"shared@example.edu"})
	require.NoError(t, err)
	require.NotNil(t, res["shared@example.edu"])
	assert.Equal(t, "c-email", res["shared@example.edu"].CanonicalID)
}

func TestNormalization(t *testing.T) {
	assert.Equal(t, "dana@example.edu", NormalizeEmail(" DANA@example.EDU  "))
	assert.Equal(t, "dana levi", NormalizeName("  Dana \t LEVI "))
}
