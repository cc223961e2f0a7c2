package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSONBoundary(t *testing.T) {
	var got Values
	err := json.Unmarshal([]byte(`{"destination":"Goa","budget":40000,"veg":true,"acts":["beach",2],"dates":null}`), &got)
	require.NoError(t, err)

	assert.Equal(t, KindString, got["destination"].Kind())
	n, ok := got["budget"].Int()
	require.True(t, ok)
	assert.Equal(t, int64(40000), n)
	assert.Equal(t, KindBool, got["veg"].Kind())
	assert.Equal(t, []string{"beach", "2"}, got["acts"].Items())
	assert.True(t, got["dates"].IsNull())
}

func TestValueRejectsObjects(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"nested":1}`), &v)
	require.ErrorIs(t, err, ErrUnsupportedValue)

	err = json.Unmarshal([]byte(`[["a"]]`), &v)
	require.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestValueIsEmpty(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null(), true},
		{Text(""), true},
		{Text("  "), true},
		{List(), true},
		{Text("Goa"), false},
		{Number(0), false},
		{Bool(false), false},
		{List("beach"), false},
	}
	for _, tc := range cases {
		if got := tc.v.IsEmpty(); got != tc.want {
			t.Errorf("IsEmpty(%v %q) = %v, want %v", tc.v.Kind(), tc.v.String(), got, tc.want)
		}
	}
}

func TestValueFloatFromQuotedBudget(t *testing.T) {
	f, ok := Text("40,000").Float()
	require.True(t, ok)
	assert.Equal(t, 40000.0, f)

	_, ok = Text("cheap").Float()
	assert.False(t, ok)
}

func TestValueMarshalRoundTripsThroughAny(t *testing.T) {
	b, err := json.Marshal(Values{"budget": Number(60000), "acts": List("scuba")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"budget":60000,"acts":["scuba"]}`, string(b))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "₹40,000", Rupees(40000).String())
	assert.Equal(t, "₹500", Rupees(500).String())
	assert.Equal(t, "1,200 USD", Money{Amount: 1200, Currency: "USD"}.String())
}
