package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonBlockingReader_ReadLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "single answer", input: "a\n", want: []string{"a"}},
		{name: "trims whitespace", input: "  32.5 \r\n", want: []string{"32.5"}},
		{name: "empty answer keeps default", input: "\n", want: []string{""}},
		{name: "sequential answers", input: "e\n18\n餐饮\n", want: []string{"e", "18", "餐饮"}},
		{name: "last line without newline", input: "y\nq", want: []string{"y", "q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewNonBlockingReader(strings.NewReader(tt.input))
			for _, want := range tt.want {
				got, err := r.ReadLine(context.Background())
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
			_, err := r.ReadLine(context.Background())
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestNonBlockingReader_Cancellation(t *testing.T) {
	t.Run("already canceled", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pw.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewNonBlockingReader(pr).ReadLine(ctx)
		assert.ErrorIs(t, err, ErrInputCancelled)
	})

	t.Run("canceled while waiting for input", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pw.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := NewNonBlockingReader(pr).ReadLine(ctx)
		assert.ErrorIs(t, err, ErrInputCancelled)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestNewNonBlockingReader_NilPanics(t *testing.T) {
	assert.Panics(t, func() { NewNonBlockingReader(nil) })
}
