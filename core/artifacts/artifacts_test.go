package artifacts_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/contracts"
)

type (
	accountOpened struct{ Owner string }
	accountClosed struct{}
)

var (
	opened = artifacts.MustParse("6e1e5f0d-1d35-4c02-9a55-cf7a3c7d5f01", 0)
	closed = artifacts.MustParse("6e1e5f0d-1d35-4c02-9a55-cf7a3c7d5f02", 0)
)

func TestArtifact_Equality(t *testing.T) {
	a := artifacts.MustParse(opened.ID.String(), 0)
	require.Equal(t, opened, a)
	require.True(t, opened == a)
	require.NotEqual(t, opened, artifacts.New(opened.ID, 1))
	require.True(t, artifacts.Artifact{}.IsZero())
	require.Equal(t, opened.ID.String()+"/0", opened.String())
}

func TestParse_Invalid(t *testing.T) {
	_, err := artifacts.Parse("not-a-uuid", 0)
	require.ErrorIs(t, err, artifacts.ErrInvalidIdentifier)
	require.Panics(t, func() { artifacts.MustParse("x", 0) })
}

func TestRegistry_Associate(t *testing.T) {
	r := artifacts.NewRegistry()
	require.NoError(t, r.Associate(reflect.TypeFor[accountOpened](), opened))

	// pointer and value share the association
	a, ok := r.ArtifactFor(reflect.TypeFor[*accountOpened]())
	require.True(t, ok)
	require.Equal(t, opened, a)

	kind, ok := r.KindFor(opened)
	require.True(t, ok)
	require.Equal(t, reflect.TypeFor[accountOpened](), kind)

	// identical association is idempotent
	require.NoError(t, r.Associate(reflect.TypeFor[*accountOpened](), opened))
	require.Equal(t, 1, r.Len())
}

func TestRegistry_AssociateConflicts(t *testing.T) {
	r := artifacts.NewRegistry()
	require.NoError(t, r.Associate(reflect.TypeFor[accountOpened](), opened))

	err := r.Associate(reflect.TypeFor[accountOpened](), closed)
	require.ErrorIs(t, err, artifacts.ErrAlreadyAssociated)

	err = r.Associate(reflect.TypeFor[accountClosed](), opened)
	require.ErrorIs(t, err, artifacts.ErrAlreadyAssociated)

	// another generation is another artifact
	require.NoError(t, r.Associate(reflect.TypeFor[accountClosed](), artifacts.New(opened.ID, 1)))

	err = r.Associate(reflect.TypeFor[struct{ X int }](), artifacts.Artifact{})
	require.ErrorIs(t, err, artifacts.ErrMissingIdentifier)
	require.Error(t, r.Associate(nil, closed))
}

func TestRegistry_Unknown(t *testing.T) {
	r := artifacts.NewRegistry()
	_, ok := r.ArtifactFor(reflect.TypeFor[accountOpened]())
	require.False(t, ok)
	_, ok = r.ArtifactFor(nil)
	require.False(t, ok)
	_, ok = r.KindFor(opened)
	require.False(t, ok)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := artifacts.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Associate(reflect.TypeFor[accountOpened](), opened)
			_, _ = r.ArtifactFor(reflect.TypeFor[accountOpened]())
		}()
	}
	wg.Wait()
	require.Equal(t, []reflect.Type{reflect.TypeFor[accountOpened]()}, r.Kinds())
}

func TestMap_KeepsInsertionOrder(t *testing.T) {
	m := artifacts.NewMap[string]()
	require.True(t, m.Set(closed, "closed"))
	require.True(t, m.Set(opened, "opened"))
	require.False(t, m.Set(closed, "closed again"))

	require.Equal(t, []artifacts.Artifact{closed, opened}, m.Keys())
	v, ok := m.Get(closed)
	require.True(t, ok)
	require.Equal(t, "closed again", v)

	var seen []string
	for _, v := range m.All() {
		seen = append(seen, v)
	}
	require.Equal(t, []string{"closed again", "opened"}, seen)
}

func TestSet(t *testing.T) {
	s := artifacts.NewSet(opened, closed, opened)
	require.Equal(t, 2, s.Len())
	require.True(t, s.Has(closed))
	require.Equal(t, []artifacts.Artifact{opened, closed}, s.Items())
}

func TestContract(t *testing.T) {
	c := artifacts.ToContract(artifacts.New(opened.ID, 3))
	require.Equal(t, &contracts.Artifact{ID: opened.ID, Generation: 3}, c)

	a, err := artifacts.FromContract(c)
	require.NoError(t, err)
	require.Equal(t, artifacts.New(opened.ID, 3), a)

	_, err = artifacts.FromContract(nil)
	require.ErrorIs(t, err, artifacts.ErrMissingIdentifier)
	_, err = artifacts.FromContract(&contracts.Artifact{ID: uuid.Nil})
	require.ErrorIs(t, err, artifacts.ErrMissingIdentifier)
}
