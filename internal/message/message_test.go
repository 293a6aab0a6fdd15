package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	assert.Equal(t, KindInteger, Int(-3).Kind())
	assert.Equal(t, int64(-3), Int(-3).Int())
	assert.Equal(t, KindFloat, Float(1.5).Kind())
	assert.Equal(t, 1.5, Float(1.5).Float())
	assert.Equal(t, KindBool, Bool(true).Kind())
	assert.True(t, Bool(true).Bool())

	// Accessors for other kinds return the zero value.
	assert.Zero(t, Bool(true).Int())
	assert.Zero(t, Int(7).Float())
}

func TestMessageEquality(t *testing.T) {
	assert.Equal(t, NewSignal("hi", Int(1)), NewSignal("hi", Int(1)))
	assert.NotEqual(t, NewSignal("hi", Int(1)), NewSignal("hi", Float(1)))
	assert.NotEqual(t, NewSignal("hi", Int(1)), NewSubscription("hi"))
	assert.True(t, NewSignal("hi", Bool(false)) == NewSignal("hi", Bool(false)))
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, `Signal("hi", int 1)`, NewSignal("hi", Int(1)).String())
	assert.Equal(t, `Signal("bye", float 12)`, NewSignal("bye", Float(12)).String())
	assert.Equal(t, `Subscription("hi")`, NewSubscription("hi").String())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		kind    string
		text    string
		want    Value
		wantErr bool
	}{
		{kind: "int", text: "42", want: Int(42)},
		{kind: "integer", text: "-1", want: Int(-1)},
		{kind: "float", text: "12.5", want: Float(12.5)},
		{kind: "bool", text: "true", want: Bool(true)},
		{kind: "int", text: "1.5", wantErr: true},
		{kind: "bool", text: "maybe", wantErr: true},
		{kind: "string", text: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.text, func(t *testing.T) {
			kind, err := ParseKind(tt.kind)
			if err == nil {
				var v Value
				v, err = ParseValue(kind, tt.text)
				if !tt.wantErr {
					require.NoError(t, err)
					assert.Equal(t, tt.want, v)
					return
				}
			}
			assert.Error(t, err)
		})
	}
}
