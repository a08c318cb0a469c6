package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwx123321/smart-garden/internal/model"
)

func TestConvertOperation(t *testing.T) {
	tests := []struct {
		op      string
		status  bool
		wantErr error
	}{
		{op: OpTurnOn, status: true},
		{op: OpTurnOff, status: false},
		{op: "on", status: true},
		{op: "off", status: false},
		{op: "toggle", wantErr: ErrUnknownOperation},
		{op: "", wantErr: ErrUnknownOperation},
	}
	for _, tc := range tests {
		r := model.Rule{DestinationDevice: "light", Operation: tc.op}
		cmd, err := ConvertOperation(r)
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr, tc.op)
			continue
		}
		require.NoError(t, err, tc.op)
		assert.Equal(t, model.CommandOpt, cmd.Kind)
		assert.Equal(t, tc.status, cmd.Status, tc.op)
	}
}

func TestConvertOperationEmptyDestination(t *testing.T) {
	_, err := ConvertOperation(model.Rule{Operation: OpTurnOn})
	assert.ErrorIs(t, err, ErrEmptyDestination)
}

func TestEvaluateNumeric(t *testing.T) {
	tests := []struct {
		cmp      model.Comparator
		src, dst interface{}
		want     bool
	}{
		{model.CompareGreaterThan, 30.0, 25.0, true},
		{model.CompareGreaterThan, 20.0, 25.0, false},
		{model.CompareGreaterThan, 25.0, 25.0, false},
		{model.CompareGreaterThanEqual, 25.0, 25.0, true},
		{model.CompareLessThan, 20.0, 25.0, true},
		{model.CompareLessThanEqual, 25.0, 25.0, true},
		{model.CompareEqual, 25.0, 25.0, true},
		{model.CompareNotEqual, 25.0, 24.0, true},
		// mixed representations coerce before comparing
		{model.CompareGreaterThan, "30,5", 25, true},
		{model.CompareEqual, true, 1.0, true},
	}
	for _, tc := range tests {
		got, err := Evaluate(tc.cmp, tc.src, tc.dst)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%v %s %v", tc.src, tc.cmp, tc.dst)
	}
}

func TestEvaluateStringPair(t *testing.T) {
	got, err := Evaluate(model.CompareEqual, "open", "open")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Evaluate(model.CompareNotEqual, "open", "closed")
	require.NoError(t, err)
	assert.True(t, got)

	_, err = Evaluate(model.CompareGreaterThan, "open", "closed")
	assert.ErrorIs(t, err, ErrStringComparator)
}

func TestEvaluateCoercionFailure(t *testing.T) {
	_, err := Evaluate(model.CompareGreaterThan, "warm", 25.0)
	assert.Error(t, err)

	_, err = Evaluate(model.CompareGreaterThan, 25.0, []int{1})
	assert.Error(t, err)
}
