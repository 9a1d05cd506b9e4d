package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func BenchmarkChecker_CheckReadiness(b *testing.B) {
	checker := New(time.Second)
	for _, name := range []string{"profiles", "upstream", "config"} {
		checker.RegisterCheck(name, func(context.Context) error { return nil })
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checker.CheckReadiness(ctx)
	}
}

func BenchmarkLivenessHandler(b *testing.B) {
	handler := New(time.Second).LivenessHandler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
