package reflector

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	OrderID string
}

type quantity int

func TestKindOf(t *testing.T) {
	k := KindOf(orderPlaced{OrderID: "o-1"})
	require.True(t, k.Named)
	require.Equal(t, "github.com/codewandler/esclient-go/internal/reflector.orderPlaced", k.Name)
	require.Equal(t, reflect.TypeFor[orderPlaced](), k.Type)
}

func TestKindOf_PointerIsUnwrapped(t *testing.T) {
	require.Equal(t, KindOf(orderPlaced{}), KindOf(&orderPlaced{}))
	require.Equal(t, KindFor[orderPlaced](), KindFor[*orderPlaced]())
	require.NotEqual(t, reflect.Pointer, KindFor[**orderPlaced]().Type.Kind())
}

func TestKindOf_Unnamed(t *testing.T) {
	for _, v := range []any{map[string]any{}, struct{}{}, []int{1}} {
		k := KindOf(v)
		require.False(t, k.Named, "%T", v)
		require.Empty(t, k.Name)
		require.NotEmpty(t, k.String())
	}
}

func TestKindOf_NamedScalar(t *testing.T) {
	k := KindOf(quantity(3))
	require.True(t, k.Named)
	require.Equal(t, "github.com/codewandler/esclient-go/internal/reflector.quantity", k.String())
}

func TestKindOf_Nil(t *testing.T) {
	require.True(t, KindOf(nil).IsZero())
	require.Equal(t, "<nil>", KindOf(nil).String())
}

func TestKindForType_Cached(t *testing.T) {
	a := KindForType(reflect.TypeFor[orderPlaced]())
	b := KindForType(reflect.TypeFor[*orderPlaced]())
	require.Equal(t, a, b)
}
