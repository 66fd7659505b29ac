package sl_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/estudarpro/estudar/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.Panics(t, func() {
		_ = sl.Err(nil)
	})
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{name: "full number", phone: "+5511999998888", want: "**********8888"},
		{name: "short", phone: "123", want: "***"},
		{name: "empty", phone: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sl.MaskPhone(tt.phone))
		})
	}
}

func TestPhone_Attr(t *testing.T) {
	attr := sl.Phone("+5511999998888")
	assert.Equal(t, "phone", attr.Key)
	assert.Equal(t, "**********8888", attr.Value.String())
}
