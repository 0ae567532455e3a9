package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{name: "debug", input: "debug", expected: DebugLevel},
		{name: "upper case", input: "INFO", expected: InfoLevel},
		{name: "empty", input: "", expected: InfoLevel},
		{name: "warning alias", input: "warning", expected: WarnLevel},
		{name: "error", input: " error ", expected: ErrorLevel},
		{name: "fatal", input: "fatal", expected: FatalLevel},
		{name: "unknown", input: "verbose", expected: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(err)
			} else {
				require.NoError(err)
			}
			require.Equal(tt.expected, level)
		})
	}
}

func TestSlogLogger(t *testing.T) {
	t.Setenv("ENV", "")

	t.Run("json output", func(t *testing.T) {
		require := require.New(t)

		var buf bytes.Buffer
		l := NewSlogWithWriter(&buf, InfoLevel, false)
		l.Info("listening", "address", "127.0.0.1:502")

		var record map[string]any
		require.NoError(json.Unmarshal(buf.Bytes(), &record))
		require.Equal("listening", record["msg"])
		require.Equal("127.0.0.1:502", record["address"])
		require.Contains(record, "ts")
	})

	t.Run("level filtering", func(t *testing.T) {
		require := require.New(t)

		var buf bytes.Buffer
		l := NewSlogWithWriter(&buf, WarnLevel, false)
		l.Debug("dropped")
		l.Info("dropped")
		require.Zero(buf.Len())

		l.Warn("kept")
		require.Contains(buf.String(), "kept")
		require.Equal(WarnLevel, l.Level())
	})

	t.Run("child shares level", func(t *testing.T) {
		require := require.New(t)

		var buf bytes.Buffer
		l := NewSlogWithWriter(&buf, InfoLevel, false)
		child := l.With("remote_address", "10.0.0.1:1234")

		child.Debug("hidden")
		require.Zero(buf.Len())

		l.SetLevel(DebugLevel)
		require.Equal(DebugLevel, child.Level())

		child.Debug("shown")
		require.Contains(buf.String(), "10.0.0.1:1234")
	})
}

func TestMockLogger(t *testing.T) {
	require := require.New(t)

	m := NewMockLogger()
	m.On("Info", "hello", mock.Anything).Return()
	m.On("With", mock.Anything).Return(m)

	m.With("k", "v").Info("hello", "a", 1)
	m.AssertCalled(t, "Info", "hello", []any{"a", 1})
	require.Len(m.Calls, 2)
}

func TestSetLogger(t *testing.T) {
	require := require.New(t)

	prev := GetLogger()
	require.NotNil(prev)

	m := NewMockLogger()
	m.On("Warn", "switched", mock.Anything).Return()
	m.On("With", mock.Anything).Return(m)

	restore := SetLogger(m)
	Warn("switched", "k", "v")
	With("conn_id", 1).Warn("switched")
	m.AssertNumberOfCalls(t, "Warn", 2)

	restore()
	require.Same(prev, GetLogger())

	// nil is ignored
	SetLogger(nil)()
	require.Same(prev, GetLogger())
}

func TestSetLogger_Concurrent(t *testing.T) {
	var buf1, buf2 syncBuffer
	l1 := NewSlogWithWriter(&buf1, InfoLevel, false)
	l2 := NewSlogWithWriter(&buf2, InfoLevel, false)

	restore := SetLogger(l1)
	defer restore()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("tick", "worker", i, "n", j)
			}
		}()
	}
	for n := 0; n < 10; n++ {
		SetLogger(l2)
		SetLogger(l1)
	}
	wg.Wait()

	require.Equal(t, 200, strings.Count(buf1.String(), "tick")+strings.Count(buf2.String(), "tick"))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
