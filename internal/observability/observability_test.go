package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "Authorization=Bearer abc", want: map[string]string{"Authorization": "Bearer abc"}},
		{name: "multiple with spaces", input: "a=1, b = 2", want: map[string]string{"a": "1", "b": "2"}},
		{name: "value containing equals", input: "token=x=y", want: map[string]string{"token": "x=y"}},
		{name: "skips malformed", input: "novalue,=empty,k=v", want: map[string]string{"k": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseHeaders(tt.input))
		})
	}
}

func TestConvertToAttribute(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  attribute.Type
	}{
		{name: "string", value: "x", want: attribute.STRING},
		{name: "int", value: 3, want: attribute.INT64},
		{name: "int64", value: int64(3), want: attribute.INT64},
		{name: "float", value: 1.5, want: attribute.FLOAT64},
		{name: "bool", value: true, want: attribute.BOOL},
		{name: "string slice", value: []string{"a"}, want: attribute.STRINGSLICE},
		{name: "fallback", value: map[string]int{"a": 1}, want: attribute.STRING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := convertToAttribute("k", tt.value)
			assert.Equal(t, tt.want, kv.Value.Type())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("OTEL_SERVICE_NAME", "assistant-test")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-key=1")

	cfg := ConfigFromEnv()
	assert.Equal(t, "stdout", cfg.ExporterType)
	assert.Equal(t, "assistant-test", cfg.ServiceName)
	assert.Equal(t, map[string]string{"x-key": "1"}, cfg.OTLPHeaders)
}

func TestInit(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		require.NoError(t, Init(Config{ExporterType: "none"}, zerolog.Nop()))
		require.NoError(t, Shutdown(context.Background()))
	})

	t.Run("stdout", func(t *testing.T) {
		require.NoError(t, Init(Config{ExporterType: "stdout"}, zerolog.Nop()))
		require.NoError(t, Shutdown(context.Background()))
	})

	t.Run("unknown exporter", func(t *testing.T) {
		err := Init(Config{ExporterType: "zipkin"}, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown exporter type")
	})
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "tools.call", map[string]any{
		"tool":    "weather.get_daily",
		"attempt": 1,
	})
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	// Ending twice and with an error must not panic
	EndSpan(span, errors.New("boom"))
	EndSpan(span, nil)
}

func TestShutdownWithoutInit(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background()))
}
